package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aulaviva/quizengine/internal/model"
)

var (
	fenceRe = regexp.MustCompile("```(?:json)?")
	arrayRe = regexp.MustCompile(`(?s)\[.*\]`)
)

func systemPrompt(language string) string {
	if strings.HasPrefix(strings.ToLower(language), "pt") {
		return "Você é um assistente útil que responde APENAS com JSON válido."
	}
	return "You are a helpful assistant that replies ONLY with valid JSON."
}

func generatePrompt(topic string, count int, difficulty model.Difficulty, language string) string {
	lang := "English"
	if strings.HasPrefix(strings.ToLower(language), "pt") {
		lang = "Brazilian Portuguese"
	}
	return fmt.Sprintf(`Write %d multiple-choice questions in %s about: %s.
Difficulty: %s. Reply with a JSON array only, no prose. Each element:
{"questionText": "...", "difficulty": "%s", "points": 1,
 "options": [{"optionText": "...", "isCorrect": true}, {"optionText": "...", "isCorrect": false}]}
Exactly one option per question must have "isCorrect": true. Each question
needs four options.`, count, lang, topic, difficulty, difficulty)
}

// extractJSON strips markdown code fences and surrounding prose from a model
// response, keeping the outermost JSON array when one is present.
func extractJSON(raw string) ([]byte, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	if m := arrayRe.FindString(cleaned); m != "" {
		cleaned = m
	}
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return []byte(cleaned), nil
}
