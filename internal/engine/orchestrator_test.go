package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- port fakes -----------------------------------------------------------

type fakeStore struct {
	mu  sync.Mutex
	cfg domain.Configuration
}

func newFakeStore() *fakeStore {
	return &fakeStore{cfg: domain.DefaultConfiguration()}
}

func (s *fakeStore) Load() (domain.Configuration, error) { return s.Snapshot(), nil }

func (s *fakeStore) Snapshot() domain.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *fakeStore) Set(key, value string) (domain.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cfg.SetValue(key, value); err != nil {
		return domain.Configuration{}, err
	}
	return s.cfg, nil
}

func (s *fakeStore) Path() string { return "" }

func (s *fakeStore) setProvider(provider domain.BackendID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Provider = provider
}

type stubBackend struct {
	id      domain.BackendID
	mu      sync.Mutex
	calls   int
	respond func(ctx context.Context, query string) (string, error)
}

func newStubBackend(id domain.BackendID, text string) *stubBackend {
	return &stubBackend{
		id: id,
		respond: func(context.Context, string) (string, error) {
			return text, nil
		},
	}
}

func (b *stubBackend) ID() domain.BackendID { return b.id }

func (b *stubBackend) Generate(ctx context.Context, query string, _ domain.BackendSettings) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return b.respond(ctx, query)
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fakeResolver struct {
	backends map[domain.BackendID]ports.Backend
}

func (r *fakeResolver) Resolve(id domain.BackendID) (ports.Backend, error) {
	backend, ok := r.backends[id]
	if !ok {
		return nil, &domain.UnknownBackendError{ID: id}
	}
	return backend, nil
}

func (r *fakeResolver) IDs() []domain.BackendID {
	ids := make([]domain.BackendID, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type presentedError struct {
	kind domain.ErrorKind
	msg  string
}

type recordingPresenter struct {
	mu     sync.Mutex
	shows  int
	hides  int
	texts  []string
	errors []presentedError
}

func (p *recordingPresenter) Show() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shows++
}

func (p *recordingPresenter) Hide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hides++
}

func (p *recordingPresenter) SetText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
}

func (p *recordingPresenter) NotifyError(kind domain.ErrorKind, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, presentedError{kind: kind, msg: msg})
}

func (p *recordingPresenter) textList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

func (p *recordingPresenter) errorList() []presentedError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]presentedError(nil), p.errors...)
}

type fakeSink struct {
	mu     sync.Mutex
	copies []string
	err    error
}

func (s *fakeSink) Copy(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.copies = append(s.copies, text)
	return nil
}

func (s *fakeSink) Enabled() bool { return true }

func (s *fakeSink) copyList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.copies...)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (c *fakeCache) key(backend domain.BackendID, model, query string) string {
	return fmt.Sprintf("%s|%s|%s", backend, model, query)
}

func (c *fakeCache) Get(backend domain.BackendID, model, query string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[c.key(backend, model, query)]
	return text, ok, nil
}

func (c *fakeCache) Put(backend domain.BackendID, model, query, command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[c.key(backend, model, query)] = command
	return nil
}

func (c *fakeCache) Clear() error { return nil }
func (c *fakeCache) Close() error { return nil }

func (c *fakeCache) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// --- harness --------------------------------------------------------------

type harness struct {
	engine    *Engine
	store     *fakeStore
	resolver  *fakeResolver
	presenter *recordingPresenter
	sink      *fakeSink
	backend   *stubBackend
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{
		store:     newFakeStore(),
		presenter: &recordingPresenter{},
		sink:      &fakeSink{},
		backend:   newStubBackend(domain.BackendOllama, "ls -la"),
	}
	h.resolver = &fakeResolver{backends: map[domain.BackendID]ports.Backend{
		domain.BackendOllama: h.backend,
	}}

	opts := Options{
		Store:     h.store,
		Resolver:  h.resolver,
		Presenter: h.presenter,
		Sink:      h.sink,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.engine = New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) waitState(t *testing.T, want domain.PresentationState) {
	t.Helper()
	waitFor(t, fmt.Sprintf("state %q", want), func() bool {
		return h.engine.Status().State == want
	})
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

// --- tests ----------------------------------------------------------------

func TestToggleAlternatesVisibility(t *testing.T) {
	h := newHarness(t, nil)

	states := []domain.PresentationState{
		domain.StateVisible, domain.StateHidden,
		domain.StateVisible, domain.StateHidden,
	}
	for i, want := range states {
		h.engine.Toggle()
		h.waitState(t, want)
		if got := h.engine.Status().State; got.Occupied() != want.Occupied() {
			t.Fatalf("toggle %d: state %q breaks alternation", i+1, got)
		}
	}
}

func TestSubmitHappyPathCopiesCommand(t *testing.T) {
	h := newHarness(t, nil)

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list all files")
	h.waitState(t, domain.StateShowingResult)

	if copies := h.sink.copyList(); len(copies) != 1 || copies[0] != "ls -la" {
		t.Fatalf("sink copies = %v, want exactly one %q", copies, "ls -la")
	}
	if texts := h.presenter.textList(); len(texts) != 1 || texts[0] != "ls -la" {
		t.Fatalf("presented texts = %v, want exactly one %q", texts, "ls -la")
	}
	status := h.engine.Status()
	if status.LastResult == nil || status.LastResult.Text != "ls -la" {
		t.Fatalf("status.LastResult = %+v, want text %q", status.LastResult, "ls -la")
	}
}

func TestSecondSubmissionSupersedesFirst(t *testing.T) {
	h := newHarness(t, nil)
	release := make(chan struct{})
	h.backend.respond = func(ctx context.Context, query string) (string, error) {
		if query == "first" {
			select {
			case <-release:
				return "cmd-first", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "cmd-second", nil
	}

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("first")
	h.waitState(t, domain.StateBusy)
	h.engine.Submit("second")
	h.waitState(t, domain.StateShowingResult)

	if texts := h.presenter.textList(); len(texts) != 1 || texts[0] != "cmd-second" {
		t.Fatalf("presented texts = %v, want only %q", texts, "cmd-second")
	}

	// Let the superseded call finish; its result must be discarded.
	close(release)
	time.Sleep(50 * time.Millisecond)
	if texts := h.presenter.textList(); len(texts) != 1 {
		t.Fatalf("superseded result was presented: %v", texts)
	}
	if copies := h.sink.copyList(); len(copies) != 1 || copies[0] != "cmd-second" {
		t.Fatalf("sink copies = %v, want only %q", copies, "cmd-second")
	}
}

func TestTimeoutShowsErrorAndLateReplyIsDropped(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.DispatchTimeout = 30 * time.Millisecond
	})
	// Ignores cancellation on purpose: the reply lands after the deadline.
	h.backend.respond = func(context.Context, string) (string, error) {
		time.Sleep(150 * time.Millisecond)
		return "late-cmd", nil
	}

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("slow query")
	h.waitState(t, domain.StateShowingError)

	errs := h.presenter.errorList()
	if len(errs) != 1 || errs[0].kind != domain.ErrKindTimeout {
		t.Fatalf("presented errors = %+v, want one timeout", errs)
	}

	// Outlive the late reply; state must not flip to showing_result.
	time.Sleep(200 * time.Millisecond)
	if got := h.engine.Status().State; got != domain.StateShowingError {
		t.Fatalf("state after late reply = %q, want showing_error", got)
	}
	if texts := h.presenter.textList(); len(texts) != 0 {
		t.Fatalf("late reply was presented: %v", texts)
	}
	if copies := h.sink.copyList(); len(copies) != 0 {
		t.Fatalf("late reply was copied: %v", copies)
	}
}

func TestProviderSwitchRoutesToNewBackend(t *testing.T) {
	openai := newStubBackend(domain.BackendOpenAI, "curl example.com")
	h := newHarness(t, nil)
	h.resolver.backends[domain.BackendOpenAI] = openai

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("first query")
	h.waitState(t, domain.StateShowingResult)

	h.store.setProvider("openai")
	h.engine.Submit("second query")
	waitFor(t, "openai backend call", func() bool { return openai.callCount() == 1 })

	if h.backend.callCount() != 1 {
		t.Fatalf("ollama calls = %d, want 1 (second query must not reach it)", h.backend.callCount())
	}
}

func TestUnknownProviderFallsBackToDefault(t *testing.T) {
	h := newHarness(t, nil)
	h.store.setProvider("olama")

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list files")
	h.waitState(t, domain.StateShowingResult)

	if h.backend.callCount() != 1 {
		t.Fatalf("default backend calls = %d, want 1", h.backend.callCount())
	}
	if errs := h.presenter.errorList(); len(errs) != 0 {
		t.Fatalf("fallback surfaced an error to the presenter: %+v", errs)
	}
}

func TestCacheHitSkipsBackend(t *testing.T) {
	cache := newFakeCache()
	h := newHarness(t, func(o *Options) {
		o.Cache = cache
	})

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list files")
	h.waitState(t, domain.StateShowingResult)
	if cache.putCount() != 1 {
		t.Fatalf("cache puts = %d, want 1 after first query", cache.putCount())
	}

	h.engine.Submit("list files")
	waitFor(t, "cached result", func() bool {
		status := h.engine.Status()
		return status.State == domain.StateShowingResult &&
			status.LastResult != nil && status.LastResult.FromCache
	})

	if h.backend.callCount() != 1 {
		t.Fatalf("backend calls = %d, want 1 (second query served from cache)", h.backend.callCount())
	}
	if copies := h.sink.copyList(); len(copies) != 2 {
		t.Fatalf("sink copies = %v, want both deliveries copied", copies)
	}
}

func TestKillSwitchShutsDownWithoutDispatch(t *testing.T) {
	shutdown := make(chan struct{})
	h := newHarness(t, func(o *Options) {
		o.OnShutdown = func() { close(shutdown) }
	})

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("EXIT")

	select {
	case <-shutdown:
	case <-time.After(2 * time.Second):
		t.Fatal("kill switch did not trigger shutdown")
	}
	h.waitState(t, domain.StateHidden)
	if h.backend.callCount() != 0 {
		t.Fatalf("kill switch dispatched a query: %d calls", h.backend.callCount())
	}
}

func TestClipboardFailureKeepsResultState(t *testing.T) {
	h := newHarness(t, nil)
	h.sink.err = fmt.Errorf("%w: no display", domain.ErrClipboardUnavailable)

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list files")
	h.waitState(t, domain.StateShowingResult)

	if texts := h.presenter.textList(); len(texts) != 1 || texts[0] != "ls -la" {
		t.Fatalf("presented texts = %v, want the result despite copy failure", texts)
	}
	errs := h.presenter.errorList()
	if len(errs) != 1 || errs[0].kind != domain.ErrKindClipboard {
		t.Fatalf("presented errors = %+v, want one clipboard notice", errs)
	}
	if got := h.engine.Status().State; got != domain.StateShowingResult {
		t.Fatalf("state = %q, want showing_result", got)
	}
}

func TestHideWhileBusyDiscardsResult(t *testing.T) {
	h := newHarness(t, nil)
	release := make(chan struct{})
	h.backend.respond = func(ctx context.Context, _ string) (string, error) {
		select {
		case <-release:
			return "ls -la", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list files")
	h.waitState(t, domain.StateBusy)
	h.engine.Toggle()
	h.waitState(t, domain.StateHidden)

	close(release)
	time.Sleep(50 * time.Millisecond)
	if got := h.engine.Status().State; got != domain.StateHidden {
		t.Fatalf("state = %q, want hidden after discarded result", got)
	}
	if texts := h.presenter.textList(); len(texts) != 0 {
		t.Fatalf("discarded result was presented: %v", texts)
	}
	if copies := h.sink.copyList(); len(copies) != 0 {
		t.Fatalf("discarded result was copied: %v", copies)
	}
}

func TestReshowBeforeArrivalDeliversResult(t *testing.T) {
	h := newHarness(t, nil)
	release := make(chan struct{})
	h.backend.respond = func(ctx context.Context, _ string) (string, error) {
		select {
		case <-release:
			return "ls -la", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list files")
	h.waitState(t, domain.StateBusy)
	h.engine.Toggle()
	h.waitState(t, domain.StateHidden)
	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)

	close(release)
	h.waitState(t, domain.StateShowingResult)
	if copies := h.sink.copyList(); len(copies) != 1 || copies[0] != "ls -la" {
		t.Fatalf("sink copies = %v, want the re-shown result", copies)
	}
}

func TestSubmitIgnoredWhileHidden(t *testing.T) {
	h := newHarness(t, nil)

	h.engine.Submit("list files")
	time.Sleep(30 * time.Millisecond)
	if h.backend.callCount() != 0 {
		t.Fatalf("hidden submit dispatched a query: %d calls", h.backend.callCount())
	}
	if got := h.engine.Status().State; got != domain.StateHidden {
		t.Fatalf("state = %q, want hidden", got)
	}
}

func TestSubmitIgnoresBlankText(t *testing.T) {
	h := newHarness(t, nil)

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("   ")
	time.Sleep(30 * time.Millisecond)
	if h.backend.callCount() != 0 {
		t.Fatalf("blank submit dispatched a query: %d calls", h.backend.callCount())
	}
	if got := h.engine.Status().State; got != domain.StateVisible {
		t.Fatalf("state = %q, want visible", got)
	}
}

func TestDismissHidesFromAnyState(t *testing.T) {
	h := newHarness(t, nil)

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list files")
	h.waitState(t, domain.StateShowingResult)
	h.engine.Dismiss()
	h.waitState(t, domain.StateHidden)

	// Dismiss while already hidden stays put.
	h.engine.Dismiss()
	time.Sleep(20 * time.Millisecond)
	if got := h.engine.Status().State; got != domain.StateHidden {
		t.Fatalf("state = %q, want hidden", got)
	}
}

func TestBusySubmitAcceptedAsSupersede(t *testing.T) {
	h := newHarness(t, nil)
	var mu sync.Mutex
	queries := []string{}
	h.backend.respond = func(ctx context.Context, query string) (string, error) {
		mu.Lock()
		queries = append(queries, query)
		mu.Unlock()
		if query == "first" {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(500 * time.Millisecond):
				return "cmd-first", nil
			}
		}
		return "cmd-second", nil
	}

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("first")
	h.waitState(t, domain.StateBusy)
	h.engine.Submit("second")
	h.waitState(t, domain.StateShowingResult)

	mu.Lock()
	dispatched := len(queries)
	mu.Unlock()
	if dispatched != 2 {
		t.Fatalf("dispatched %d queries, want both (busy submit must not be dropped)", dispatched)
	}
}

func TestStatusSnapshotTracksLoop(t *testing.T) {
	h := newHarness(t, nil)

	if got := h.engine.Status(); got.State != domain.StateHidden || got.ActiveBackend != domain.BackendOllama {
		t.Fatalf("initial status = %+v", got)
	}

	h.engine.SetHotkeyBound(true)
	waitFor(t, "hotkey bound flag", func() bool { return h.engine.Status().HotkeyBound })

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list files")
	h.waitState(t, domain.StateShowingResult)
	status := h.engine.Status()
	if status.Generation != 1 {
		t.Fatalf("generation = %d, want 1 after one submission", status.Generation)
	}
	if status.LastResult == nil || status.LastResult.Backend != domain.BackendOllama {
		t.Fatalf("LastResult = %+v", status.LastResult)
	}
}

func TestErrorResultShowsBackendError(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.respond = func(context.Context, string) (string, error) {
		return "", &domain.BackendError{
			Backend: domain.BackendOllama,
			Hint:    `start it with "ollama serve"`,
			Err:     errors.New("connection refused"),
		}
	}

	h.engine.Toggle()
	h.waitState(t, domain.StateVisible)
	h.engine.Submit("list files")
	h.waitState(t, domain.StateShowingError)

	errs := h.presenter.errorList()
	if len(errs) != 1 || errs[0].kind != domain.ErrKindBackend {
		t.Fatalf("presented errors = %+v, want one backend_error", errs)
	}
	status := h.engine.Status()
	if status.LastError == nil || status.LastError.Kind != domain.ErrKindBackend {
		t.Fatalf("status.LastError = %+v", status.LastError)
	}
}
