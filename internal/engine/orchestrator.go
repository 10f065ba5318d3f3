// Package engine owns the presentation state machine and the query
// lifecycle.
//
// A single goroutine runs the loop. Inbound operations (toggle, submit,
// dismiss) and dispatcher results arrive as messages on one channel, so the
// presentation state and the generation counter have exactly one writer.
// Staleness is generation-based: every submission takes the current counter
// value and bumps it; a result presents only if its generation is still the
// latest one. In-flight backend calls are never interrupted on supersede or
// hide, their results just get discarded on arrival.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

// Options collects the engine's collaborators. Guardrail and Cache may be
// nil; queries then skip risk assessment and caching.
type Options struct {
	Store     ports.ConfigStore
	Resolver  ports.BackendResolver
	Presenter ports.Presenter
	Sink      ports.Clipboard
	Guardrail ports.SecurityService
	Cache     ports.CacheStore
	Logger    *zap.Logger

	// DispatchTimeout bounds one query end to end; zero means the default.
	DispatchTimeout time.Duration

	// OnShutdown fires on the loop goroutine when a kill-switch word is
	// submitted. The daemon wires its context cancel here.
	OnShutdown func()
}

// Engine is the orchestrator: the state machine loop plus per-query
// dispatch.
type Engine struct {
	store      ports.ConfigStore
	resolver   ports.BackendResolver
	presenter  ports.Presenter
	sink       ports.Clipboard
	dispatcher *dispatcher
	logger     *zap.Logger
	onShutdown func()

	msgs   chan message
	done   chan struct{}
	status atomic.Value

	// Loop-owned. Nothing outside run may touch these.
	state       domain.PresentationState
	generation  uint64
	hotkeyBound bool
	lastResult  *domain.ResultSummary
	lastError   *domain.ErrorSummary
	startedAt   time.Time
}

type message interface{ isMessage() }

type toggleMsg struct{}
type submitMsg struct{ text string }
type dismissMsg struct{}
type resultMsg struct{ result domain.CommandResult }
type hotkeyBoundMsg struct{ bound bool }

func (toggleMsg) isMessage()      {}
func (submitMsg) isMessage()      {}
func (dismissMsg) isMessage()     {}
func (resultMsg) isMessage()      {}
func (hotkeyBoundMsg) isMessage() {}

// New builds an engine in the hidden state. Operations posted before Run
// starts are queued up to the channel buffer.
func New(opts Options) *Engine {
	e := &Engine{
		store:      opts.Store,
		resolver:   opts.Resolver,
		presenter:  opts.Presenter,
		sink:       opts.Sink,
		dispatcher: newDispatcher(opts.Guardrail, opts.Cache, opts.DispatchTimeout, opts.Logger),
		logger:     logging.NopIfNil(opts.Logger),
		onShutdown: opts.OnShutdown,
		msgs:       make(chan message, 64),
		done:       make(chan struct{}),
		state:      domain.StateHidden,
	}
	e.publishStatus()
	return e
}

// Run executes the loop until ctx is canceled, then drains in-flight
// queries before returning.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = time.Now()
	e.publishStatus()
	e.logger.Info("engine started")
	defer func() {
		close(e.done)
		e.dispatcher.wait()
		e.logger.Info("engine stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-e.msgs:
			e.handle(ctx, m)
		}
	}
}

// Toggle flips prompt visibility. Safe from any goroutine.
func (e *Engine) Toggle() { e.post(toggleMsg{}) }

// Submit hands typed text to the loop. Ignored while hidden.
func (e *Engine) Submit(text string) { e.post(submitMsg{text: text}) }

// Dismiss hides the prompt from any state.
func (e *Engine) Dismiss() { e.post(dismissMsg{}) }

// SetHotkeyBound records whether the global trigger registered, for the
// status snapshot.
func (e *Engine) SetHotkeyBound(bound bool) { e.post(hotkeyBoundMsg{bound: bound}) }

// Status returns the latest published snapshot without touching the loop.
func (e *Engine) Status() domain.EngineStatus {
	return e.status.Load().(domain.EngineStatus)
}

func (e *Engine) post(m message) bool {
	select {
	case e.msgs <- m:
		return true
	case <-e.done:
		return false
	}
}

func (e *Engine) postResult(result domain.CommandResult) {
	e.post(resultMsg{result: result})
}

func (e *Engine) handle(ctx context.Context, m message) {
	switch msg := m.(type) {
	case toggleMsg:
		e.handleToggle()
	case submitMsg:
		e.handleSubmit(ctx, msg.text)
	case dismissMsg:
		e.handleDismiss()
	case resultMsg:
		e.handleResult(msg.result)
	case hotkeyBoundMsg:
		e.hotkeyBound = msg.bound
		e.publishStatus()
	}
}

func (e *Engine) handleToggle() {
	togglesTotal.Inc()
	if e.state == domain.StateHidden {
		e.setState(domain.StateVisible)
		e.presenter.Show()
	} else {
		e.setState(domain.StateHidden)
		e.presenter.Hide()
	}
}

func (e *Engine) handleDismiss() {
	if e.state == domain.StateHidden {
		return
	}
	e.setState(domain.StateHidden)
	e.presenter.Hide()
}

func (e *Engine) handleSubmit(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" || e.state == domain.StateHidden {
		return
	}
	if domain.IsKillSwitch(strings.ToLower(text)) {
		e.logger.Info("kill switch submitted", zap.String("word", text))
		e.setState(domain.StateHidden)
		e.presenter.Hide()
		if e.onShutdown != nil {
			e.onShutdown()
		}
		return
	}

	cfg := e.store.Snapshot()
	id := cfg.Provider
	adapter, err := e.resolver.Resolve(id)
	if err != nil {
		var unknown *domain.UnknownBackendError
		if errors.As(err, &unknown) && id != domain.DefaultBackend {
			e.logger.Warn("unknown provider, using default",
				zap.String("provider", string(unknown.ID)),
				zap.String("suggestion", string(unknown.Suggestion)),
				zap.String("fallback", string(domain.DefaultBackend)))
			id = domain.DefaultBackend
			adapter, err = e.resolver.Resolve(id)
		}
		if err != nil {
			queriesTotal.WithLabelValues(string(id), string(domain.ErrKindUnknownBackend)).Inc()
			e.lastError = &domain.ErrorSummary{
				Kind:    domain.ErrKindUnknownBackend,
				Message: err.Error(),
				At:      time.Now(),
			}
			e.setState(domain.StateShowingError)
			e.presenter.NotifyError(domain.ErrKindUnknownBackend, err.Error())
			return
		}
	}

	query := domain.Query{
		ID:          uuid.NewString(),
		Text:        text,
		Backend:     id,
		SubmittedAt: time.Now(),
		Generation:  e.generation,
	}
	e.generation++
	e.setState(domain.StateBusy)
	e.logger.Debug("query dispatched",
		zap.String("query_id", query.ID),
		zap.String("backend", string(id)),
		zap.Uint64("generation", query.Generation))
	e.dispatcher.dispatch(ctx, query, adapter, cfg.SettingsFor(id), e.postResult)
}

func (e *Engine) handleResult(result domain.CommandResult) {
	// Only the latest submission may present.
	if result.Generation != e.generation-1 {
		staleResultsTotal.Inc()
		e.logger.Debug("superseded result discarded",
			zap.Uint64("generation", result.Generation))
		return
	}
	if e.state == domain.StateHidden {
		staleResultsTotal.Inc()
		e.logger.Debug("result discarded, prompt hidden",
			zap.Uint64("generation", result.Generation))
		return
	}

	queryDuration.WithLabelValues(string(result.Backend)).Observe(result.Elapsed.Seconds())
	if !result.OK() {
		kind := result.Kind()
		msg := presentableError(result)
		queriesTotal.WithLabelValues(string(result.Backend), string(kind)).Inc()
		e.lastError = &domain.ErrorSummary{Kind: kind, Message: msg, At: time.Now()}
		e.setState(domain.StateShowingError)
		e.presenter.NotifyError(kind, msg)
		return
	}

	queriesTotal.WithLabelValues(string(result.Backend), "success").Inc()
	if result.FromCache {
		cacheHitsTotal.Inc()
	}
	e.lastResult = &domain.ResultSummary{
		Text:      result.Text,
		Backend:   result.Backend,
		Risk:      result.Risk.Level,
		FromCache: result.FromCache,
		At:        time.Now(),
	}
	e.lastError = nil
	e.setState(domain.StateShowingResult)
	if err := e.sink.Copy(result.Text); err != nil {
		clipboardFailuresTotal.Inc()
		e.logger.Warn("clipboard copy failed", zap.Error(err))
		e.presenter.NotifyError(domain.ErrKindClipboard, "copy failed, grab the command from the prompt")
	}
	e.presenter.SetText(result.Text)
}

func (e *Engine) setState(next domain.PresentationState) {
	if e.state != next {
		e.logger.Debug("state change",
			zap.String("from", string(e.state)),
			zap.String("to", string(next)))
	}
	e.state = next
	e.publishStatus()
}

func (e *Engine) publishStatus() {
	status := domain.EngineStatus{
		State:       e.state,
		Generation:  e.generation,
		HotkeyBound: e.hotkeyBound,
		LastResult:  e.lastResult,
		LastError:   e.lastError,
		StartedAt:   e.startedAt,
	}
	if e.store != nil {
		status.ActiveBackend = e.store.Snapshot().Provider
	}
	e.status.Store(status)
}

func presentableError(result domain.CommandResult) string {
	if result.Kind() == domain.ErrKindTimeout {
		return fmt.Sprintf("%s did not answer in time, try again", result.Backend)
	}
	return result.Err.Error()
}
