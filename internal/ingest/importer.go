package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aulaviva/quizengine/internal/bank"
	"github.com/aulaviva/quizengine/internal/i18n"
	"github.com/aulaviva/quizengine/internal/model"
)

// SkippedDraft records a draft the validator rejected, with its position in
// the parsed batch and a machine-readable reason.
type SkippedDraft struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// FailedWrite records a per-item persistence failure during bulk import.
type FailedWrite struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Summary aggregates an import batch outcome. Skipped drafts and failed
// writes are reported; they never abort the rest of the batch.
type Summary struct {
	Format   Format         `json:"format"`
	Parsed   int            `json:"parsed"`
	Imported int            `json:"imported"`
	Skipped  []SkippedDraft `json:"skipped,omitempty"`
	Failed   []FailedWrite  `json:"failed,omitempty"`
}

// Message renders a localized human-readable summary line.
func (s *Summary) Message(ctx context.Context) string {
	msg := i18n.Td(ctx, "ImportSummary", map[string]any{
		"Imported": s.Imported,
		"Parsed":   s.Parsed,
	})
	if n := len(s.Skipped) + len(s.Failed); n > 0 {
		msg += " " + i18n.Tp(ctx, "ImportIgnored", n)
	}
	return msg
}

// Importer runs the full ingestion pipeline: detect, parse or normalize,
// validate, persist.
type Importer struct {
	Bank bank.Bank
}

// Import processes one raw import payload against the catalog. A FormatError
// aborts before any write. Individual draft rejections and write failures are
// collected into the summary.
func (imp *Importer) Import(ctx context.Context, raw []byte, hint string, scope model.Scope) (*Summary, error) {
	format, err := DetectFormat(raw, hint)
	if err != nil {
		return nil, err
	}

	var drafts []Draft
	switch format {
	case FormatStructured:
		if drafts, err = NormalizeRecords(raw); err != nil {
			return nil, &FormatError{Hint: hint, Reason: err.Error()}
		}
	case FormatAnnotated:
		drafts = ParseAnnotated(string(raw))
	}

	summary := &Summary{Format: format, Parsed: len(drafts)}
	var questions []model.QuizQuestion
	var accepted []int
	for i, d := range drafts {
		if verr := CheckForEvaluation(d); verr != nil {
			summary.Skipped = append(summary.Skipped, SkippedDraft{Index: i, Reason: verr.Reason})
			continue
		}
		questions = append(questions, draftToQuestion(d, scope, len(questions)))
		accepted = append(accepted, i)
	}

	res := imp.Bank.CreateMany(ctx, questions)
	summary.Imported = res.Succeeded
	for _, f := range res.Failed {
		summary.Failed = append(summary.Failed, FailedWrite{Index: accepted[f.Index], Reason: f.Err.Error()})
	}

	slog.Info("import batch processed",
		"format", format,
		"parsed", summary.Parsed,
		"imported", summary.Imported,
		"skipped", len(summary.Skipped),
		"failed", len(summary.Failed),
	)
	return summary, nil
}

// draftToQuestion turns an accepted draft into a catalog question with fresh
// ids. The justification, when present, is appended to the question text the
// same way the authoring tools render it.
func draftToQuestion(d Draft, scope model.Scope, position int) model.QuizQuestion {
	text := strings.TrimSpace(d.Prompt)
	if d.Justification != "" {
		text += "\n\n*Justificativa:* " + d.Justification
	}

	q := model.QuizQuestion{
		ID:         uuid.NewString(),
		Scope:      scope,
		Text:       text,
		Position:   position,
		Points:     d.Points,
		Difficulty: d.Difficulty,
	}
	if q.Points < 1 {
		q.Points = 1
	}
	if !q.Difficulty.IsValid() {
		q.Difficulty = model.DifficultyMedium
	}
	for i, o := range d.Options {
		q.Options = append(q.Options, model.QuizOption{
			ID:         uuid.NewString(),
			QuestionID: q.ID,
			Text:       o.Text,
			IsCorrect:  o.Correct,
			Position:   i,
		})
	}
	return q
}
