// Package doctor runs environment diagnostics for the doctor command.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	Store    ports.ConfigStore
	Security ports.SecurityService
	Sink     ports.Clipboard

	// ParseHotkey validates the configured chord; wired by the container so
	// this package stays free of the platform hotkey bindings.
	ParseHotkey func(spec string) error

	// Client performs the backend reachability probe.
	Client *http.Client
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.Store.Load()
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", s.Store.Path()))

	if err := cfg.Validate(); err != nil {
		checks = append(checks, warn("Config values", err.Error()))
	} else {
		checks = append(checks, ok("Config values", "valid"))
	}

	if s.Security != nil {
		if _, err := s.Security.Evaluate("ls"); err != nil {
			checks = append(checks, fail("Guardrail", err.Error()))
		} else {
			checks = append(checks, ok("Guardrail", "rules loaded"))
		}
	} else {
		checks = append(checks, warn("Guardrail", "not initialized"))
	}

	if s.ParseHotkey != nil {
		if err := s.ParseHotkey(cfg.Hotkey); err != nil {
			checks = append(checks, fail("Hotkey", err.Error()))
		} else {
			checks = append(checks, ok("Hotkey", cfg.Hotkey))
		}
	}

	checks = append(checks, s.backendCheck(ctx, cfg))

	if s.Sink != nil {
		if s.Sink.Enabled() {
			checks = append(checks, ok("Clipboard", "available"))
		} else {
			checks = append(checks, warn("Clipboard", "no clipboard tool found (wl-copy or xclip)"))
		}
	}

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) backendCheck(ctx context.Context, cfg domain.Configuration) domain.HealthCheck {
	switch cfg.Provider {
	case domain.BackendOllama:
		return s.ollamaCheck(ctx, cfg)
	case domain.BackendOpenAI:
		if cfg.APIKeys.OpenAI == "" {
			return warn("OpenAI", "API key missing: kmd config set api_keys.openai <key>")
		}
		return ok("OpenAI", "API key present")
	case domain.BackendGemini:
		if cfg.APIKeys.Gemini == "" {
			return warn("Gemini", "API key missing: kmd config set api_keys.gemini <key>")
		}
		return ok("Gemini", "API key present")
	default:
		return warn("Provider", fmt.Sprintf("unknown %q, daemon will fall back to %s", cfg.Provider, domain.DefaultBackend))
	}
}

func (s *Service) ollamaCheck(ctx context.Context, cfg domain.Configuration) domain.HealthCheck {
	url := strings.TrimRight(cfg.OllamaURL, "/") + "/api/tags"
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail("Ollama", err.Error())
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return warn("Ollama", fmt.Sprintf("unreachable at %s, start it with \"ollama serve\"", cfg.OllamaURL))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return warn("Ollama", fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url))
	}
	return ok("Ollama", fmt.Sprintf("reachable at %s", cfg.OllamaURL))
}

func (s *Service) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
