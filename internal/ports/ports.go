// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the engine core and external
// adapters (infrastructure). Following the Ports and Adapters (Hexagonal)
// pattern, these interfaces keep the engine independent of specific
// implementations like HTTP clients, the OS clipboard, or the hotkey hook.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Backend, ConfigStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: the engine depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/kmd/internal/domain"
)

// ConfigStore owns the persisted configuration and its in-memory snapshot.
// Implementations read and write ~/.kmd/config.json.
type ConfigStore interface {
	// Load reads the file (creating defaults on first run, recovering from
	// corruption) and primes the snapshot.
	Load() (domain.Configuration, error)
	// Snapshot returns the current configuration without touching the disk.
	Snapshot() domain.Configuration
	// Set assigns one dotted key, persists atomically and updates the snapshot.
	Set(key, value string) (domain.Configuration, error)
	// Path reports the backing file location.
	Path() string
}

// Backend is the single capability every adapter provides: turn a
// natural-language query into one command string or fail. Generate blocks
// for the duration of the network call; callers bound it with ctx.
type Backend interface {
	ID() domain.BackendID
	Generate(ctx context.Context, query string, settings domain.BackendSettings) (string, error)
}

// BackendResolver maps a backend id to its adapter. Resolution failures are
// *domain.UnknownBackendError.
type BackendResolver interface {
	Resolve(id domain.BackendID) (Backend, error)
	IDs() []domain.BackendID
}

// Trigger is the process-wide activation hook. Start returns once the hook
// is registered (or refused); the callback fires on the trigger's own
// goroutine, debounced against key repeat.
type Trigger interface {
	Start(ctx context.Context, onActivate func()) error
	Stop()
}

// Presenter is the contract the excluded UI layer implements. Calls arrive
// on the engine loop goroutine and must return promptly.
type Presenter interface {
	Show()
	Hide()
	SetText(text string)
	NotifyError(kind domain.ErrorKind, msg string)
}

// Clipboard copies finalized commands to the system clipboard. Failures are
// non-fatal and reported as domain.ErrClipboardUnavailable wrappers.
type Clipboard interface {
	Copy(text string) error
	Enabled() bool
}

// SecurityService evaluates a generated command against guardrail rules.
type SecurityService interface {
	Evaluate(command string) (domain.RiskAssessment, error)
}

// CacheStore is the generation cache consulted before any backend call.
type CacheStore interface {
	Get(backend domain.BackendID, model, query string) (string, bool, error)
	Put(backend domain.BackendID, model, query, command string) error
	Clear() error
	Close() error
}
