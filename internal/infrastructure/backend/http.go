package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/doeshing/kmd/internal/domain"
)

// newHTTPClient returns the client shared by all adapters. The dispatcher's
// per-query deadline is the effective bound; this is a backstop.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: domain.DefaultHTTPClientTimeout}
}

// postJSON sends a JSON payload and returns the response status and body.
// Transport-level failures come back as errors; HTTP error statuses do not
// (each adapter maps them to its own hints).
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// bodyExcerpt keeps error messages readable when a provider returns a page
// of HTML or a verbose JSON error.
func bodyExcerpt(body []byte) string {
	const max = 200
	text := string(bytes.TrimSpace(body))
	if len(text) > max {
		return text[:max] + "…"
	}
	return text
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
