package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aulaviva/quizengine/internal/model"
)

// Annotated-text parsing happens in two decoupled stages: splitBlocks cuts
// the input into per-question blocks, parseBlock runs a two-state line
// classifier (beforeOptions / inOptions) over each block. Metadata labels are
// bilingual (Portuguese/English) because the source material comes from a
// Brazilian learning platform.

var (
	dashRuleRe = regexp.MustCompile(`^-{3,}\s*$`)
	headingRe  = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	numberedRe = regexp.MustCompile(`^(\d+)[\.)]\s+(.*)$`)

	answerLineRe = regexp.MustCompile(
		`(?i)^(?:gabarito|resposta(?:\s+correta)?|correct(?:\s+answer)?|answer)\s*:\s*(.+)$`)
	justificationLineRe = regexp.MustCompile(
		`(?i)^(?:justificativa|explica[çc][ãa]o|explanation|feedback|reason)\s*:\s*(.+)$`)
	difficultyLineRe = regexp.MustCompile(
		`(?i)^\[?\s*(?:dificuldade|difficulty)\s*:\s*([^\s\]|,;]+)`)
	pointsRe = regexp.MustCompile(`(?i)(?:points|pontos)\s*:\s*(\d+)`)

	checkboxOptionRe = regexp.MustCompile(`^(?:-\s*)?\[([ xX])\]\s*(.+)$`)
	letteredOptionRe = regexp.MustCompile(`^([A-Za-z0-9]{1,2})[\.)]\s*(.+)$`)
	bulletOptionRe   = regexp.MustCompile(`^[-*]\s+(.+)$`)

	// Inner artifacts that leak into checkbox option text, e.g. `- [ ] "a)" Paris`
	// or `- [x] **b)** London`.
	innerPrefixRe = regexp.MustCompile(`^[\*\s]*([A-Za-z0-9]{1,2})[\.)][\*\s]*(.*)$`)
	citeTagRe     = regexp.MustCompile(`^\[[a-z_]{2,}\]\s*`)
	skipMetaRe    = regexp.MustCompile(`(?i)^(?:data|quest[ãa]o|question)\s*[:\d]`)
)

// ParseAnnotated splits free-form annotated text into question drafts. Blocks
// that do not yield a non-empty prompt and at least two options are dropped.
func ParseAnnotated(text string) []Draft {
	var drafts []Draft
	for _, block := range splitBlocks(text) {
		if d, ok := parseBlock(block); ok {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

// splitBlocks cuts the input at question boundaries: a rule of three or more
// dashes, a heading (one to three #) preceded by a blank line or
// start-of-text, or a line starting with an integer followed by "." or ")".
// Dash rules are separators and belong to no block; boundary headings and
// numbered lines open the block they start.
func splitBlocks(text string) [][]string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var blocks [][]string
	var cur []string
	flush := func() {
		for _, l := range cur {
			if strings.TrimSpace(l) != "" {
				blocks = append(blocks, cur)
				break
			}
		}
		cur = nil
	}

	prevBlank := true
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case dashRuleRe.MatchString(trimmed):
			flush()
		case headingRe.MatchString(trimmed) && prevBlank:
			flush()
			cur = append(cur, line)
		case numberedRe.MatchString(trimmed):
			flush()
			cur = append(cur, line)
		default:
			cur = append(cur, line)
		}
		prevBlank = trimmed == "" || dashRuleRe.MatchString(trimmed)
	}
	flush()
	return blocks
}

type classifierState int

const (
	beforeOptions classifierState = iota
	inOptions
)

// parseBlock classifies each non-empty line of a block in strict priority
// order: answer marker > justification > difficulty/points > option > prompt
// continuation. Once an option has been seen, unclassified lines are dropped
// so trailing commentary cannot corrupt the prompt.
func parseBlock(lines []string) (Draft, bool) {
	d := Draft{
		SourceFormat: FormatAnnotated,
		Difficulty:   model.DifficultyMedium,
		Points:       1,
	}
	state := beforeOptions
	var promptLines []string

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		clean := metadataView(line)

		if m := answerLineRe.FindStringSubmatch(clean); m != nil {
			d.CorrectMarker = strings.TrimSpace(m[1])
			continue
		}
		if m := justificationLineRe.FindStringSubmatch(clean); m != nil {
			d.Justification = strings.TrimSpace(m[1])
			continue
		}
		if m := difficultyLineRe.FindStringSubmatch(clean); m != nil {
			d.Difficulty = normalizeDifficulty(m[1])
			if pm := pointsRe.FindStringSubmatch(clean); pm != nil {
				if n, err := strconv.Atoi(pm[1]); err == nil && n >= 1 {
					d.Points = n
				}
			}
			continue
		}

		// The line that opened the block is the question's own boundary
		// marker, never an option, even when it looks like "1. ...".
		if i > 0 || !numberedRe.MatchString(line) {
			if opt, ok := parseOptionLine(line); ok {
				state = inOptions
				d.Options = append(d.Options, opt)
				continue
			}
		}

		if state == beforeOptions {
			pl := citeTagRe.ReplaceAllString(stripLeadMarkers(line), "")
			if pl == "" || skipMetaRe.MatchString(metadataView(pl)) {
				continue
			}
			promptLines = append(promptLines, pl)
		}
	}

	applyMarker(&d)
	d.Prompt = strings.TrimSpace(strings.Join(promptLines, "\n"))
	if d.Prompt == "" || len(d.Options) < 2 {
		return Draft{}, false
	}
	return d, true
}

// metadataView normalizes a line for metadata-label matching only: strips a
// blockquote prefix, cite-style tags like [cite_start], and bold markers.
// Option parsing keeps working on the raw line.
func metadataView(line string) string {
	s := strings.TrimSpace(strings.TrimPrefix(line, ">"))
	s = citeTagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

// stripLeadMarkers removes heading hashes and numbered-list prefixes from a
// prompt line.
func stripLeadMarkers(line string) string {
	if m := headingRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[2])
	}
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[2])
	}
	return strings.TrimSpace(line)
}

// parseOptionLine recognizes the three option markups: checkbox
// ("- [ ] text" / "- [x] text", case-insensitive x marks correct), lettered or
// numbered prefix ("A) text" / "1. text"), and plain bullet ("- text").
func parseOptionLine(line string) (DraftOption, bool) {
	if m := checkboxOptionRe.FindStringSubmatch(line); m != nil {
		opt := DraftOption{Correct: strings.EqualFold(m[1], "x")}
		opt.Key, opt.Text = cleanOptionText(m[2])
		if opt.Text == "" {
			return DraftOption{}, false
		}
		return opt, true
	}
	if m := letteredOptionRe.FindStringSubmatch(line); m != nil {
		opt := DraftOption{Key: strings.ToLower(m[1])}
		_, opt.Text = cleanOptionText(m[2])
		if opt.Text == "" {
			return DraftOption{}, false
		}
		return opt, true
	}
	if m := bulletOptionRe.FindStringSubmatch(line); m != nil {
		opt := DraftOption{}
		opt.Key, opt.Text = cleanOptionText(m[1])
		if opt.Text == "" {
			return DraftOption{}, false
		}
		return opt, true
	}
	return DraftOption{}, false
}

// cleanOptionText strips quote/asterisk wrapping and a redundant inner key
// prefix ("a)", "**b)**") that AI-generated or re-exported material tends to
// leave inside the option text. The inner key, when found, is returned
// lower-cased.
func cleanOptionText(text string) (key, out string) {
	out = strings.TrimSpace(text)
	out = strings.Trim(out, `"'`)
	if m := innerPrefixRe.FindStringSubmatch(out); m != nil {
		key = strings.ToLower(m[1])
		out = m[2]
	}
	out = strings.Trim(out, "* \t")
	return key, strings.TrimSpace(out)
}

// applyMarker flags the option the correct-answer marker points at. Options
// already carrying their own explicit flag (checkbox x) keep it.
func applyMarker(d *Draft) {
	if d.CorrectMarker == "" {
		return
	}
	for i := range d.Options {
		if d.Options[i].Correct {
			continue
		}
		if markerMatches(d.CorrectMarker, d.Options[i].Key, i, d.Options[i].Text) {
			d.Options[i].Correct = true
		}
	}
}
