package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aulaviva/quizengine/internal/model"
)

// Key-alias tables for heterogeneous structured records. The sets come from
// the many producer formats the platform has to accept (hand-written JSON,
// PDF extraction output, AI generation, Portuguese and English authoring
// tools). Keeping them as data keeps field resolution a single code path.
var (
	questionsListAliases = []string{"questions", "questoes", "items"}
	promptAliases        = []string{"question", "questao", "questionText", "text", "prompt", "enunciado", "pergunta"}
	optionsAliases       = []string{"options", "opcoes", "alternativas", "choices", "respostas", "answers"}
	optionTextAliases    = []string{"optionText", "text", "texto"}
	optionFlagAliases    = []string{"isCorrect", "is_correct", "correta", "correct"}
	markerAliases        = []string{"gabarito", "resposta", "respostaCorreta", "correct", "correct_option", "correctAnswerIndex", "answer"}
	difficultyAliases    = []string{"difficulty", "dificuldade"}
	pointsAliases        = []string{"points", "pontos"}
	justificationAliases = []string{"justificativa", "explicacao", "explanation", "feedback", "reason", "justification"}
)

// NormalizeRecords maps a structured-record document onto canonical drafts.
// The document may be a single record, an array of records, or an object
// exposing the list under a questions-like key. Items that are not objects
// are skipped.
func NormalizeRecords(raw []byte) ([]Draft, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse structured records: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := resolveField(v, questionsListAliases); ok {
			if arr, ok := list.([]any); ok {
				items = arr
				break
			}
		}
		items = []any{v}
	default:
		return nil, fmt.Errorf("structured record must be an object or array, got %T", doc)
	}

	var drafts []Draft
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		drafts = append(drafts, normalizeRecord(rec))
	}
	return drafts, nil
}

func normalizeRecord(rec map[string]any) Draft {
	d := Draft{
		SourceFormat: FormatStructured,
		Difficulty:   model.DifficultyMedium,
		Points:       1,
	}

	if v, ok := resolveField(rec, promptAliases); ok {
		d.Prompt = strings.TrimSpace(stringify(v))
	}
	if v, ok := resolveField(rec, markerAliases); ok {
		d.CorrectMarker = strings.TrimSpace(stringify(v))
	}
	if v, ok := resolveField(rec, difficultyAliases); ok {
		d.Difficulty = normalizeDifficulty(stringify(v))
	}
	if v, ok := resolveField(rec, pointsAliases); ok {
		if n, ok := intify(v); ok && n >= 1 {
			d.Points = n
		}
	}
	if v, ok := resolveField(rec, justificationAliases); ok {
		d.Justification = strings.TrimSpace(stringify(v))
	}

	if v, ok := resolveField(rec, optionsAliases); ok {
		d.Options = normalizeOptions(v)
	}

	// Options carrying their own explicit flag keep it; the marker resolves
	// the rest by key, letter, zero-based index, or full option text.
	applyMarker(&d)
	return d
}

// normalizeOptions accepts either an array (bare strings or objects exposing
// text under an alias) or a keyed map {"a": "Paris", "b": "London"}, whose
// entries become options carrying their originating key lower-cased.
func normalizeOptions(v any) []DraftOption {
	var out []DraftOption
	switch opts := v.(type) {
	case []any:
		for _, o := range opts {
			switch ov := o.(type) {
			case string:
				if t := strings.TrimSpace(ov); t != "" {
					out = append(out, DraftOption{Text: t})
				}
			case map[string]any:
				opt := DraftOption{}
				if tv, ok := resolveField(ov, optionTextAliases); ok {
					opt.Text = strings.TrimSpace(stringify(tv))
				}
				if fv, ok := resolveField(ov, optionFlagAliases); ok {
					opt.Correct = truthy(fv)
				}
				if kv, ok := ov["key"]; ok {
					opt.Key = strings.ToLower(strings.TrimSpace(stringify(kv)))
				}
				if opt.Text != "" {
					out = append(out, opt)
				}
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t := strings.TrimSpace(stringify(opts[k]))
			if t == "" {
				continue
			}
			out = append(out, DraftOption{Key: strings.ToLower(k), Text: t})
		}
	}
	return out
}

// resolveField returns the value of the first present alias, trying exact
// keys first and a case-insensitive pass second.
func resolveField(rec map[string]any, aliases []string) (any, bool) {
	for _, a := range aliases {
		if v, ok := rec[a]; ok && v != nil {
			return v, true
		}
	}
	for _, a := range aliases {
		for k, v := range rec {
			if v != nil && strings.EqualFold(k, a) {
				return v, true
			}
		}
	}
	return nil, false
}

// stringify renders a JSON scalar the way the alias tables expect: numbers
// without a trailing ".0" so an index marker 1 compares equal to "1".
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

func intify(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return strings.EqualFold(x, "true") || x == "1"
	case float64:
		return x != 0
	default:
		return false
	}
}
