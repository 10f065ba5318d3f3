package cli

import (
	"context"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/doeshing/kmd/internal/app"
	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/engine"
	"github.com/doeshing/kmd/internal/httpapi"
	"github.com/doeshing/kmd/internal/infrastructure/config"
	"github.com/doeshing/kmd/internal/infrastructure/hotkey"
	"github.com/doeshing/kmd/internal/infrastructure/presenter"
)

// runDaemon runs the engine loop, the hotkey trigger, the config watcher and
// the control API until the context is canceled or a kill-switch query asks
// for shutdown.
func runDaemon(ctx context.Context, container *app.Container, listen string) error {
	log := container.Logger
	cfg := container.Store.Snapshot()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng := engine.New(engine.Options{
		Store:      container.Store,
		Resolver:   container.Resolver,
		Presenter:  presenter.NewLog(log),
		Sink:       container.Sink,
		Guardrail:  container.Guardrail,
		Cache:      container.Cache,
		Logger:     log,
		OnShutdown: cancel,
	})

	watcher := config.NewWatcher(container.Store, func(old, current domain.Configuration) {
		if old.Theme != current.Theme {
			log.Info("theme changed, applies when the prompt UI restarts",
				zap.String("theme", current.Theme))
		}
	}, log)

	server := httpapi.NewServer(listenAddr(listen), eng, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(gctx)
	})

	g.Go(func() error {
		combo, err := hotkey.ParseCombo(cfg.Hotkey)
		if err != nil {
			log.Warn("hotkey not bound, toggle via the control API",
				zap.String("hotkey", cfg.Hotkey), zap.Error(err))
			eng.SetHotkeyBound(false)
			return nil
		}
		trigger := hotkey.NewTrigger(combo, log)
		if err := trigger.Start(gctx, eng.Toggle); err != nil {
			log.Warn("hotkey not bound, toggle via the control API", zap.Error(err))
			eng.SetHotkeyBound(false)
			return nil
		}
		eng.SetHotkeyBound(true)
		<-gctx.Done()
		trigger.Stop()
		return nil
	})

	g.Go(func() error {
		if err := watcher.Start(gctx); err != nil {
			log.Warn("config watcher unavailable, edits need a restart", zap.Error(err))
			return nil
		}
		<-gctx.Done()
		watcher.Stop()
		return nil
	})

	g.Go(func() error {
		return server.Run(gctx)
	})

	log.Info("kmd daemon up",
		zap.String("hotkey", cfg.Hotkey),
		zap.String("provider", string(cfg.Provider)),
		zap.String("listen", listenAddr(listen)))

	return g.Wait()
}

func listenAddr(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("KMD_LISTEN"); env != "" {
		return env
	}
	return domain.DefaultListenAddr
}
