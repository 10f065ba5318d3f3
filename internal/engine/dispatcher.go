package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

// dispatcher runs each query on its own goroutine and reports exactly one
// CommandResult back to the loop, no matter how the backend behaves.
type dispatcher struct {
	guardrail ports.SecurityService
	cache     ports.CacheStore
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func newDispatcher(guardrail ports.SecurityService, cache ports.CacheStore, timeout time.Duration, logger *zap.Logger) *dispatcher {
	if timeout <= 0 {
		timeout = domain.DefaultDispatchTimeout
	}
	return &dispatcher{
		guardrail: guardrail,
		cache:     cache,
		timeout:   timeout,
		logger:    logging.NopIfNil(logger),
	}
}

// dispatch starts the query. deliver is invoked exactly once, on the
// query's goroutine.
func (d *dispatcher) dispatch(ctx context.Context, query domain.Query, adapter ports.Backend, settings domain.BackendSettings, deliver func(domain.CommandResult)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		deliver(d.run(ctx, query, adapter, settings))
	}()
}

// wait blocks until every in-flight query has reported.
func (d *dispatcher) wait() { d.wg.Wait() }

func (d *dispatcher) run(ctx context.Context, query domain.Query, adapter ports.Backend, settings domain.BackendSettings) domain.CommandResult {
	start := time.Now()
	result := domain.CommandResult{Generation: query.Generation, Backend: query.Backend}

	if d.cache != nil {
		text, hit, err := d.cache.Get(query.Backend, settings.Model, query.Text)
		switch {
		case err != nil:
			d.logger.Warn("cache lookup failed", zap.Error(err))
		case hit:
			result.Text = text
			result.FromCache = true
			result.Risk = d.assess(text)
			result.Elapsed = time.Since(start)
			d.logger.Debug("cache hit", zap.String("query_id", query.ID))
			return result
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	// Buffered so a response landing after the deadline parks here instead
	// of leaking the goroutine; the loop never sees it.
	replyCh := make(chan reply, 1)
	go func() {
		text, err := adapter.Generate(ctx, query.Text, settings)
		replyCh <- reply{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		result.Err = ctx.Err()
	case r := <-replyCh:
		result.Text, result.Err = r.text, r.err
	}
	result.Elapsed = time.Since(start)
	if result.Err != nil {
		return result
	}

	result.Risk = d.assess(result.Text)
	if d.cache != nil && result.Risk.Level != domain.RiskCritical {
		if err := d.cache.Put(query.Backend, settings.Model, query.Text, result.Text); err != nil {
			d.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return result
}

func (d *dispatcher) assess(command string) domain.RiskAssessment {
	if d.guardrail == nil {
		return domain.RiskAssessment{Level: domain.RiskSafe}
	}
	risk, err := d.guardrail.Evaluate(command)
	if err != nil {
		d.logger.Warn("guardrail evaluation failed", zap.Error(err))
		return domain.RiskAssessment{Level: domain.RiskSafe}
	}
	return risk
}
