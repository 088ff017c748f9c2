package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"Sentinel6G/internal/config"
	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

// Gemini asks the Gemini API for a profile with a JSON response MIME type.
type Gemini struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var _ ports.Oracle = (*Gemini)(nil)

// NewGemini creates a Gemini developer API client. An empty BaseURL keeps
// the SDK default endpoint.
func NewGemini(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini oracle misconfigured")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, logger: log}, nil
}

// Analyze generates one JSON answer for the article.
func (g *Gemini) Analyze(ctx context.Context, article domain.Article) ([]byte, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(UserPrompt(article), genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(), ""),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	})
	if err != nil {
		return nil, unavailable(fmt.Errorf("generate content: %w", err))
	}
	if g.logger != nil {
		g.logger.Debug("gemini answered", "url", article.URL)
	}
	return answer(result.Text())
}
