// Package backend maps backend ids to adapters and implements the three
// stock adapters (ollama, openai, gemini).
package backend

import (
	"net/http"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/ports"
)

// suggestionDistance is the widest edit distance still offered as a
// "did you mean" candidate.
const suggestionDistance = 2

// Registry resolves backend ids to adapters. Registration happens at
// startup; resolution on every submission.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.BackendID]ports.Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.BackendID]ports.Backend)}
}

// NewDefaultRegistry returns a registry with the three stock adapters
// sharing one HTTP client.
func NewDefaultRegistry(client *http.Client, logger *zap.Logger) *Registry {
	if client == nil {
		client = newHTTPClient()
	}
	registry := NewRegistry()
	registry.Register(NewOllama(client, logger))
	registry.Register(NewOpenAI(client, logger))
	registry.Register(NewGemini(client, logger))
	return registry
}

// Register adds an adapter under its own id, replacing any previous one.
func (r *Registry) Register(adapter ports.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.ID()] = adapter
}

// Resolve implements ports.BackendResolver.
func (r *Registry) Resolve(id domain.BackendID) (ports.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if adapter, ok := r.adapters[id]; ok {
		return adapter, nil
	}
	return nil, &domain.UnknownBackendError{ID: id, Suggestion: r.nearest(id)}
}

// IDs implements ports.BackendResolver.
func (r *Registry) IDs() []domain.BackendID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.BackendID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// nearest finds the closest registered id for typo hints. Caller holds the
// read lock.
func (r *Registry) nearest(id domain.BackendID) domain.BackendID {
	best := domain.BackendID("")
	bestDistance := suggestionDistance + 1
	for candidate := range r.adapters {
		distance := levenshtein.ComputeDistance(string(id), string(candidate))
		if distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	if bestDistance > suggestionDistance {
		return ""
	}
	return best
}

var _ ports.BackendResolver = (*Registry)(nil)
