package domain

import "time"

// Backend identifiers
const (
	// BackendOllama is the local backend served by an Ollama daemon
	BackendOllama BackendID = "ollama"
	// BackendOpenAI is the hosted OpenAI chat-completions backend
	BackendOpenAI BackendID = "openai"
	// BackendGemini is the hosted Google Gemini backend
	BackendGemini BackendID = "gemini"
	// DefaultBackend is used when the configured provider does not resolve
	DefaultBackend = BackendOllama
)

// Configuration defaults
const (
	// DefaultOllamaURL is the stock Ollama listen address
	DefaultOllamaURL = "http://localhost:11434"
	// DefaultOllamaModel is the model requested from Ollama when unset
	DefaultOllamaModel = "llama3.2"
	// DefaultHotkey is the stock activation combination
	DefaultHotkey = "ctrl+shift+space"
	// DefaultTheme is persisted for the UI layer; the engine never reads it
	DefaultTheme = "dark"
)

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for files holding credentials (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultDispatchTimeout bounds a single query end to end
	DefaultDispatchTimeout = 15 * time.Second
	// DefaultHTTPClientTimeout is the inner HTTP client bound; the dispatcher
	// timeout is the effective one
	DefaultHTTPClientTimeout = 30 * time.Second
	// DefaultToggleDebounce suppresses key-repeat on the activation trigger
	DefaultToggleDebounce = 250 * time.Millisecond
	// DefaultReloadDebounce coalesces bursts of config file events
	DefaultReloadDebounce = 500 * time.Millisecond
)

// Cache constants
const (
	// DefaultCacheTTL is how long a cached generation stays valid
	DefaultCacheTTL = 24 * time.Hour
	// DefaultMaxCacheEntries caps the generation cache size
	DefaultMaxCacheEntries = 256
)

// Control API constants
const (
	// DefaultListenAddr is the control API bind address (loopback only)
	DefaultListenAddr = "127.0.0.1:5630"
)

// KillSwitchWords submitted as a query shut the daemon down instead of
// dispatching.
var KillSwitchWords = []string{"exit", "quit"}

// IsKillSwitch reports whether a submitted text is a shutdown request.
func IsKillSwitch(text string) bool {
	for _, word := range KillSwitchWords {
		if text == word {
			return true
		}
	}
	return false
}
