package hotkey

import (
	"context"
	"fmt"
	"sync"
	"time"

	xhotkey "golang.design/x/hotkey"
	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

// Trigger registers the activation chord with the OS and forwards presses
// to the engine's toggle callback.
type Trigger struct {
	combo    Combo
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	hk      *xhotkey.Hotkey
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewTrigger builds a trigger for the given chord.
func NewTrigger(combo Combo, logger *zap.Logger) *Trigger {
	return &Trigger{
		combo:    combo,
		debounce: domain.DefaultToggleDebounce,
		logger:   logging.NopIfNil(logger),
	}
}

// Start registers the chord and begins forwarding presses to onActivate.
// Registration fails on hosts without a compatible display server; the
// caller decides whether that is fatal.
func (t *Trigger) Start(ctx context.Context, onActivate func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}

	hk := xhotkey.New(t.combo.Mods, t.combo.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey %q: %w", t.combo, err)
	}

	t.hk = hk
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.running = true
	t.logger.Info("hotkey registered", zap.String("combo", t.combo.String()))

	go t.run(ctx, onActivate)
	return nil
}

func (t *Trigger) run(ctx context.Context, onActivate func()) {
	defer close(t.doneCh)

	gate := newDebounceGate(t.debounce)
	keydown := t.hk.Keydown()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-keydown:
			if !gate.Allow(time.Now()) {
				continue
			}
			onActivate()
		}
	}
}

// Stop unregisters the chord and waits for the forwarding goroutine.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopCh)
	hk := t.hk
	doneCh := t.doneCh
	t.mu.Unlock()

	<-doneCh
	if err := hk.Unregister(); err != nil {
		t.logger.Warn("hotkey unregister failed", zap.Error(err))
	}
}

// debounceGate drops presses that arrive inside the key-repeat window.
type debounceGate struct {
	window time.Duration
	last   time.Time
}

func newDebounceGate(window time.Duration) *debounceGate {
	return &debounceGate{window: window}
}

func (g *debounceGate) Allow(now time.Time) bool {
	if !g.last.IsZero() && now.Sub(g.last) < g.window {
		return false
	}
	g.last = now
	return true
}

var _ ports.Trigger = (*Trigger)(nil)
