package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aulaviva/quizengine/internal/model"
)

// Client wraps an OpenAI-compatible API used to generate draft questions.
// Generated output is raw structured-record JSON; it goes through the exact
// same normalization and validation gate as file imports, so a hallucinated
// or malformed record is skipped, never admitted.
type Client struct {
	api      *openai.Client
	model    string
	language string
}

// New creates a question-generation client. baseURL may point at any
// OpenAI-compatible endpoint (including a local one).
func New(baseURL, apiKey, modelName, language string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		language: language,
	}
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	return nil
}

// GenerateQuestions asks the model for count multiple-choice questions about
// a topic and returns the cleaned JSON payload, ready for the structured
// record normalizer.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, count int, difficulty model.Difficulty) ([]byte, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.7,
		TopP:        0.9,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(c.language)},
			{Role: openai.ChatMessageRoleUser, Content: generatePrompt(topic, count, difficulty, c.language)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM generation response", "raw", raw)

	payload, err := extractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse LLM response: %w", err)
	}
	return payload, nil
}
