package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FormatError reports input unrecognizable as either supported import format.
// Detection happens before any catalog write, so a FormatError always means
// the batch was aborted cleanly.
type FormatError struct {
	Hint   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("unrecognized import format (hint %q): %s", e.Hint, e.Reason)
	}
	return "unrecognized import format: " + e.Reason
}

// DetectFormat classifies raw import input as structured-record or
// annotated-text. The optional hint is a declared file extension ("json",
// "md", with or without the dot); it orders the attempts but content always
// wins: a .json hint over unparseable JSON still falls through to the
// annotated-text attempt, and a .md hint over block-free JSON falls through
// to the structured attempt.
func DetectFormat(raw []byte, hint string) (Format, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", &FormatError{Hint: hint, Reason: "empty input"}
	}

	h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hint), "."))
	if h == "md" || h == "markdown" || h == "txt" {
		if hasCandidateBlocks(string(raw)) {
			return FormatAnnotated, nil
		}
		if (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
			return FormatStructured, nil
		}
		return "", &FormatError{Hint: hint, Reason: "no question blocks found"}
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		if json.Valid(trimmed) {
			return FormatStructured, nil
		}
	}
	if hasCandidateBlocks(string(raw)) {
		return FormatAnnotated, nil
	}
	return "", &FormatError{Hint: hint, Reason: "neither well-formed JSON nor annotated question text"}
}

// hasCandidateBlocks reports whether block splitting yields at least one
// block that contains an option-like line, i.e. could produce a question.
func hasCandidateBlocks(text string) bool {
	for _, block := range splitBlocks(text) {
		for _, line := range block {
			if _, ok := parseOptionLine(strings.TrimSpace(line)); ok {
				return true
			}
		}
	}
	return false
}
