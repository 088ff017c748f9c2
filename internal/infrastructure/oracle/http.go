package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Sentinel6G/internal/config"
	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/ports"
)

const maxAnswerBytes = 1 << 20

// HTTP talks to a self-hosted analysis service that answers POST /analyze
// with the profile document.
type HTTP struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Oracle = (*HTTP)(nil)

// NewHTTP creates a reusable HTTP client. Per-call deadlines come from the
// context; the client timeout is only a backstop.
func NewHTTP(cfg config.HTTPConfig, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTP{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     client,
	}
}

type analyzeRequest struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Summary      string `json:"summary"`
	Source       string `json:"source"`
	SourceRegion string `json:"source_region,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	Instructions string `json:"instructions"`
}

// Analyze posts the article and returns the response body unchanged.
func (c *HTTP) Analyze(ctx context.Context, article domain.Article) ([]byte, error) {
	payload := analyzeRequest{
		Title:        article.Title,
		URL:          article.URL,
		Summary:      article.RawSummary,
		Source:       article.SourceName,
		SourceRegion: article.SourceRegion,
		Instructions: SystemPrompt(),
	}
	if !article.PublishedAt.IsZero() {
		payload.PublishedAt = article.PublishedAt.UTC().Format(time.RFC3339)
	}

	raw, err := c.post(ctx, "/analyze", payload)
	if err != nil {
		return nil, unavailable(err)
	}
	return answer(string(raw))
}

func (c *HTTP) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}
