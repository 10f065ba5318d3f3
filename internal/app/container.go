// Package app wires infrastructure adapters into the services the commands
// run.
package app

import (
	"fmt"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/application/doctor"
	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/infrastructure/backend"
	"github.com/doeshing/kmd/internal/infrastructure/cache"
	"github.com/doeshing/kmd/internal/infrastructure/clipboard"
	"github.com/doeshing/kmd/internal/infrastructure/config"
	"github.com/doeshing/kmd/internal/infrastructure/hotkey"
	"github.com/doeshing/kmd/internal/infrastructure/security"
	"github.com/doeshing/kmd/internal/pkg/filesystem"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

// Container holds the dependency graph shared by the daemon and the one-shot
// commands.
type Container struct {
	Logger     *zap.Logger
	Store      *config.Store
	Resolver   ports.BackendResolver
	Guardrail  ports.SecurityService
	Cache      ports.CacheStore
	Sink       *clipboard.Sink
	Doctor     *doctor.Service
	HTTPClient *http.Client

	cacheStore *cache.Store
}

// BuildContainer constructs the dependency graph. The generation cache is
// best effort: failure to open it disables caching instead of aborting.
func BuildContainer(verbose bool) (*Container, error) {
	log, err := logging.New(verbose)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	store := config.NewStore("", log)
	if _, err := store.Load(); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: domain.DefaultHTTPClientTimeout}

	guardrail, err := security.NewGuardrail(security.DefaultRulesPath(), log)
	if err != nil {
		log.Warn("guardrail rules rejected, using embedded defaults", zap.Error(err))
		guardrail, err = security.NewDefaultGuardrail(log)
		if err != nil {
			return nil, err
		}
	}

	c := &Container{
		Logger:     log,
		Store:      store,
		Resolver:   backend.NewDefaultRegistry(client, log),
		Guardrail:  guardrail,
		Sink:       clipboard.NewSink(log),
		HTTPClient: client,
	}

	cachePath := filepath.Join(filesystem.DataDir(), "cache.db")
	if cs, err := cache.NewStore(cachePath); err != nil {
		log.Warn("generation cache disabled", zap.String("path", cachePath), zap.Error(err))
	} else {
		c.Cache = cs
		c.cacheStore = cs
	}

	c.Doctor = &doctor.Service{
		Store:    store,
		Security: guardrail,
		Sink:     c.Sink,
		ParseHotkey: func(spec string) error {
			_, err := hotkey.ParseCombo(spec)
			return err
		},
		Client: client,
	}

	return c, nil
}

// Close releases container-held resources.
func (c *Container) Close() {
	if c.cacheStore != nil {
		if err := c.cacheStore.Close(); err != nil {
			c.Logger.Warn("cache close failed", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
}
