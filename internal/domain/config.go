package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// BackendID identifies a registered backend ("ollama", "openai", "gemini").
type BackendID string

// Configuration mirrors the on-disk config.json exactly. The engine reads a
// fresh snapshot at every submission, so edits take effect without restart;
// Hotkey and Theme are the exceptions (bound at startup, consumed by the UI).
type Configuration struct {
	Provider  BackendID `json:"provider"`
	APIKeys   APIKeys   `json:"api_keys"`
	OllamaURL string    `json:"ollama_url"`
	Model     string    `json:"model"`
	Hotkey    string    `json:"hotkey"`
	Theme     string    `json:"theme"`
}

// APIKeys holds credentials for the hosted backends.
type APIKeys struct {
	OpenAI string `json:"openai"`
	Gemini string `json:"gemini"`
}

// BackendSettings is the per-call parameter block handed to an adapter.
// Only the adapter interprets it; absent fields fall back to adapter defaults.
type BackendSettings struct {
	BaseURL string
	APIKey  string
	Model   string
}

// DefaultConfiguration returns the configuration written on first run.
func DefaultConfiguration() Configuration {
	return Configuration{
		Provider:  DefaultBackend,
		APIKeys:   APIKeys{},
		OllamaURL: DefaultOllamaURL,
		Model:     DefaultOllamaModel,
		Hotkey:    DefaultHotkey,
		Theme:     DefaultTheme,
	}
}

// Normalize fills zero-valued fields with defaults. Partial config files
// (older versions, hand edits) merge over defaults instead of failing.
func (c *Configuration) Normalize() {
	def := DefaultConfiguration()
	if strings.TrimSpace(string(c.Provider)) == "" {
		c.Provider = def.Provider
	}
	if strings.TrimSpace(c.OllamaURL) == "" {
		c.OllamaURL = def.OllamaURL
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = def.Model
	}
	if strings.TrimSpace(c.Hotkey) == "" {
		c.Hotkey = def.Hotkey
	}
	if strings.TrimSpace(c.Theme) == "" {
		c.Theme = def.Theme
	}
}

// Validate reports hard violations only. An unknown provider is not one:
// the engine falls back to the default backend at submission time instead.
func (c Configuration) Validate() error {
	if _, err := url.ParseRequestURI(c.OllamaURL); err != nil {
		return fmt.Errorf("ollama_url is not a valid URL: %w", err)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	if strings.TrimSpace(c.Hotkey) == "" {
		return fmt.Errorf("hotkey must not be empty")
	}
	return nil
}

// SettingsFor derives the adapter parameter block for a backend. Hosted
// backends carry their credential; the model field is only meaningful for
// ollama (hosted adapters apply their own model defaults).
func (c Configuration) SettingsFor(id BackendID) BackendSettings {
	switch id {
	case BackendOllama:
		return BackendSettings{BaseURL: c.OllamaURL, Model: c.Model}
	case BackendOpenAI:
		return BackendSettings{APIKey: c.APIKeys.OpenAI}
	case BackendGemini:
		return BackendSettings{APIKey: c.APIKeys.Gemini}
	default:
		return BackendSettings{}
	}
}

// Redacted returns a copy safe for display and logs.
func (c Configuration) Redacted() Configuration {
	out := c
	out.APIKeys.OpenAI = redactKey(c.APIKeys.OpenAI)
	out.APIKeys.Gemini = redactKey(c.APIKeys.Gemini)
	return out
}

func redactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}

// ConfigKeys lists the dotted keys addressable via Value and SetValue.
func ConfigKeys() []string {
	keys := []string{
		"provider",
		"api_keys.openai",
		"api_keys.gemini",
		"ollama_url",
		"model",
		"hotkey",
		"theme",
	}
	sort.Strings(keys)
	return keys
}

// Value resolves a dotted key to its current value.
func (c Configuration) Value(key string) (string, error) {
	switch key {
	case "provider":
		return string(c.Provider), nil
	case "api_keys.openai":
		return c.APIKeys.OpenAI, nil
	case "api_keys.gemini":
		return c.APIKeys.Gemini, nil
	case "ollama_url":
		return c.OllamaURL, nil
	case "model":
		return c.Model, nil
	case "hotkey":
		return c.Hotkey, nil
	case "theme":
		return c.Theme, nil
	default:
		return "", fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(ConfigKeys(), ", "))
	}
}

// SetValue assigns a dotted key. The caller persists the result.
func (c *Configuration) SetValue(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "provider":
		if value == "" {
			return fmt.Errorf("provider must not be empty")
		}
		c.Provider = BackendID(value)
	case "api_keys.openai":
		c.APIKeys.OpenAI = value
	case "api_keys.gemini":
		c.APIKeys.Gemini = value
	case "ollama_url":
		if _, err := url.ParseRequestURI(value); err != nil {
			return fmt.Errorf("ollama_url is not a valid URL: %w", err)
		}
		c.OllamaURL = value
	case "model":
		if value == "" {
			return fmt.Errorf("model must not be empty")
		}
		c.Model = value
	case "hotkey":
		if value == "" {
			return fmt.Errorf("hotkey must not be empty")
		}
		c.Hotkey = value
	case "theme":
		c.Theme = value
	default:
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(ConfigKeys(), ", "))
	}
	return nil
}
