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

// Ollama talks to a local Ollama daemon via its generate endpoint.
type Ollama struct {
	client *http.Client
	logger *zap.Logger
}

// NewOllama builds the local backend adapter.
func NewOllama(client *http.Client, logger *zap.Logger) *Ollama {
	if client == nil {
		client = newHTTPClient()
	}
	return &Ollama{client: client, logger: logging.NopIfNil(logger)}
}

// ID implements ports.Backend.
func (o *Ollama) ID() domain.BackendID { return domain.BackendOllama }

// Generate implements ports.Backend.
func (o *Ollama) Generate(ctx context.Context, query string, settings domain.BackendSettings) (string, error) {
	baseURL := strings.TrimRight(defaultString(settings.BaseURL, domain.DefaultOllamaURL), "/")
	model := defaultString(settings.Model, domain.DefaultOllamaModel)

	payload := map[string]any{
		"model":  model,
		"prompt": BuildPrompt(query),
		"stream": false,
	}

	status, body, err := postJSON(ctx, o.client, baseURL+"/api/generate", nil, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &domain.BackendError{
			Backend: domain.BackendOllama,
			Hint:    `start it with "ollama serve"`,
			Err:     err,
		}
	}
	if status >= 400 {
		return "", &domain.BackendError{
			Backend: domain.BackendOllama,
			Err:     fmt.Errorf("HTTP %d: %s", status, bodyExcerpt(body)),
		}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &domain.BackendError{Backend: domain.BackendOllama, Err: fmt.Errorf("decode response: %w", err)}
	}

	command := CleanResponse(response.Response)
	if command == "" {
		return "", &domain.BackendError{Backend: domain.BackendOllama, Err: errors.New("empty response")}
	}
	o.logger.Debug("ollama generated", zap.String("model", model))
	return command, nil
}

var _ ports.Backend = (*Ollama)(nil)
