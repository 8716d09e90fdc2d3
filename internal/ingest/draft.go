package ingest

import (
	"strconv"
	"strings"

	"github.com/aulaviva/quizengine/internal/model"
)

// Format tags the recognized shape of raw import input.
type Format string

const (
	// FormatStructured is a JSON document: one record, an array of records,
	// or an object exposing a questions-like array.
	FormatStructured Format = "structured-record"
	// FormatAnnotated is free-form text with per-question blocks and
	// bilingual metadata labels.
	FormatAnnotated Format = "annotated-text"
)

// Draft is a transient, pre-validation question record produced by
// normalization or parsing. It is discarded once the validator accepts or
// rejects it; only accepted drafts become catalog questions.
type Draft struct {
	SourceFormat  Format
	Prompt        string
	Options       []DraftOption
	CorrectMarker string
	Difficulty    model.Difficulty
	Points        int
	Justification string
}

// DraftOption is one answer choice of a draft. Key carries the option's
// originating map key or letter prefix (lower-cased), used to resolve the
// correct-answer marker.
type DraftOption struct {
	Key     string
	Text    string
	Correct bool
}

// normalizeDifficulty maps bilingual difficulty synonyms onto the canonical
// levels. Unrecognized input falls back to medium.
func normalizeDifficulty(raw string) model.Difficulty {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "fácil") || strings.Contains(s, "facil") || strings.Contains(s, "easy"):
		return model.DifficultyEasy
	case strings.Contains(s, "difícil") || strings.Contains(s, "dificil") || strings.Contains(s, "hard"):
		return model.DifficultyHard
	default:
		return model.DifficultyMedium
	}
}

// markerMatches reports whether an option identified by its key, zero-based
// index and text corresponds to a correct-answer marker. Markers may be a
// letter ("B"), an option key ("b"), a zero-based index ("1"), or the full
// option text.
func markerMatches(marker string, key string, index int, text string) bool {
	if marker == "" {
		return false
	}
	if key != "" && strings.EqualFold(key, marker) {
		return true
	}
	if len(marker) == 1 {
		c := marker[0]
		if c >= 'A' && c <= 'Z' && int(c-'A') == index {
			return true
		}
		if c >= 'a' && c <= 'z' && int(c-'a') == index {
			return true
		}
	}
	if marker == strconv.Itoa(index) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(text), marker)
}
