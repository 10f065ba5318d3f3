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
	openaiDefaultBaseURL = "https://api.openai.com/v1"
	openaiDefaultModel   = "gpt-3.5-turbo"
)

// OpenAI calls the hosted chat-completions endpoint.
type OpenAI struct {
	client *http.Client
	logger *zap.Logger
}

// NewOpenAI builds the hosted OpenAI adapter.
func NewOpenAI(client *http.Client, logger *zap.Logger) *OpenAI {
	if client == nil {
		client = newHTTPClient()
	}
	return &OpenAI{client: client, logger: logging.NopIfNil(logger)}
}

// ID implements ports.Backend.
func (o *OpenAI) ID() domain.BackendID { return domain.BackendOpenAI }

// Generate implements ports.Backend.
func (o *OpenAI) Generate(ctx context.Context, query string, settings domain.BackendSettings) (string, error) {
	if settings.APIKey == "" {
		return "", &domain.BackendError{
			Backend: domain.BackendOpenAI,
			Hint:    "kmd config set api_keys.openai <key>",
			Err:     errors.New("API key not configured"),
		}
	}
	baseURL := strings.TrimRight(defaultString(settings.BaseURL, openaiDefaultBaseURL), "/")
	model := defaultString(settings.Model, openaiDefaultModel)

	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemInstruction},
			{"role": "user", "content": query},
		},
		"temperature": 0.3,
		"max_tokens":  100,
	}
	headers := map[string]string{"Authorization": "Bearer " + settings.APIKey}

	status, body, err := postJSON(ctx, o.client, baseURL+"/chat/completions", headers, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &domain.BackendError{Backend: domain.BackendOpenAI, Err: err}
	}
	switch {
	case status == http.StatusUnauthorized:
		return "", &domain.BackendError{
			Backend: domain.BackendOpenAI,
			Hint:    "check api_keys.openai",
			Err:     errors.New("invalid API key"),
		}
	case status == http.StatusTooManyRequests:
		return "", &domain.BackendError{
			Backend: domain.BackendOpenAI,
			Hint:    "rate limited, retry shortly",
			Err:     errors.New("too many requests"),
		}
	case status >= 400:
		return "", &domain.BackendError{
			Backend: domain.BackendOpenAI,
			Err:     fmt.Errorf("HTTP %d: %s", status, bodyExcerpt(body)),
		}
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &domain.BackendError{Backend: domain.BackendOpenAI, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(response.Choices) == 0 {
		return "", &domain.BackendError{Backend: domain.BackendOpenAI, Err: errors.New("empty response")}
	}

	command := CleanResponse(response.Choices[0].Message.Content)
	if command == "" {
		return "", &domain.BackendError{Backend: domain.BackendOpenAI, Err: errors.New("empty response")}
	}
	o.logger.Debug("openai generated", zap.String("model", model))
	return command, nil
}

var _ ports.Backend = (*OpenAI)(nil)
