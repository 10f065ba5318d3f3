package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-pro"
)

// Gemini calls the hosted generateContent endpoint.
type Gemini struct {
	client *http.Client
	logger *zap.Logger
}

// NewGemini builds the hosted Gemini adapter.
func NewGemini(client *http.Client, logger *zap.Logger) *Gemini {
	if client == nil {
		client = newHTTPClient()
	}
	return &Gemini{client: client, logger: logging.NopIfNil(logger)}
}

// ID implements ports.Backend.
func (g *Gemini) ID() domain.BackendID { return domain.BackendGemini }

// Generate implements ports.Backend.
func (g *Gemini) Generate(ctx context.Context, query string, settings domain.BackendSettings) (string, error) {
	if settings.APIKey == "" {
		return "", &domain.BackendError{
			Backend: domain.BackendGemini,
			Hint:    "kmd config set api_keys.gemini <key>",
			Err:     errors.New("API key not configured"),
		}
	}
	baseURL := strings.TrimRight(defaultString(settings.BaseURL, geminiDefaultBaseURL), "/")
	model := defaultString(settings.Model, geminiDefaultModel)
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", baseURL, model, settings.APIKey)

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{
				{"text": systemInstruction + "\n\n" + query},
			}},
		},
		"generationConfig": map[string]any{
			"temperature":     0.3,
			"maxOutputTokens": 100,
		},
	}

	status, body, err := postJSON(ctx, g.client, url, nil, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &domain.BackendError{Backend: domain.BackendGemini, Err: err}
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusForbidden:
		return "", &domain.BackendError{
			Backend: domain.BackendGemini,
			Hint:    "check api_keys.gemini",
			Err:     fmt.Errorf("HTTP %d: %s", status, bodyExcerpt(body)),
		}
	case status >= 400:
		return "", &domain.BackendError{
			Backend: domain.BackendGemini,
			Err:     fmt.Errorf("HTTP %d: %s", status, bodyExcerpt(body)),
		}
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &domain.BackendError{Backend: domain.BackendGemini, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", &domain.BackendError{Backend: domain.BackendGemini, Err: errors.New("empty response")}
	}

	command := CleanResponse(response.Candidates[0].Content.Parts[0].Text)
	if command == "" {
		return "", &domain.BackendError{Backend: domain.BackendGemini, Err: errors.New("empty response")}
	}
	g.logger.Debug("gemini generated", zap.String("model", model))
	return command, nil
}

var _ ports.Backend = (*Gemini)(nil)
