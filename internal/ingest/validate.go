package ingest

import "strings"

// Machine-readable validation reasons. no_correct and multiple_correct are
// the same issue codes learners use when reporting broken questions, so the
// needs-correction bucket and the report queue speak one vocabulary.
const (
	ReasonEmptyPrompt     = "empty_prompt"
	ReasonTooFewOptions   = "too_few_options"
	ReasonNoCorrect       = "no_correct"
	ReasonMultipleCorrect = "multiple_correct"
)

// ValidationError rejects a single draft. It is recovered locally and
// aggregated into the import summary, never fatal for the batch.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid question draft: " + e.Reason
}

// Check enforces minimal well-formedness: a non-empty trimmed prompt and at
// least two options.
func Check(d Draft) *ValidationError {
	if strings.TrimSpace(d.Prompt) == "" {
		return &ValidationError{Reason: ReasonEmptyPrompt}
	}
	if len(d.Options) < 2 {
		return &ValidationError{Reason: ReasonTooFewOptions}
	}
	return nil
}

// Accept reports whether a draft passes the minimal well-formedness check.
func Accept(d Draft) bool {
	return Check(d) == nil
}

// CheckForEvaluation additionally requires exactly one correct option, which
// grading depends on. Zero or multiple correct flags route the draft to the
// needs-correction bucket; they are never silently auto-resolved.
func CheckForEvaluation(d Draft) *ValidationError {
	if err := Check(d); err != nil {
		return err
	}
	correct := 0
	for _, o := range d.Options {
		if o.Correct {
			correct++
		}
	}
	switch {
	case correct == 0:
		return &ValidationError{Reason: ReasonNoCorrect}
	case correct > 1:
		return &ValidationError{Reason: ReasonMultipleCorrect}
	}
	return nil
}
