package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"Sentinel6G/internal/config"
	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

// OpenAI asks an OpenAI-compatible chat completion API for a profile in JSON
// mode.
type OpenAI struct {
	client       *openai.Client
	model        string
	temperature  float32
	systemPrompt string
	logger       *slog.Logger
}

var _ ports.Oracle = (*OpenAI)(nil)

// NewOpenAI builds a client from configuration.
func NewOpenAI(cfg config.OpenAIConfig, log *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, errors.New("openai oracle misconfigured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAI{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		logger:       log,
	}, nil
}

// Analyze sends the article as a user message and returns the raw answer.
func (o *OpenAI) Analyze(ctx context.Context, article domain.Article) ([]byte, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(article)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, unavailable(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, unavailable(errEmptyAnswer)
	}
	o.debug("openai answered", "url", article.URL, "tokens", resp.Usage.TotalTokens)
	return answer(resp.Choices[0].Message.Content)
}

func (o *OpenAI) debug(msg string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return SystemPrompt()
	}
	return prompt
}
