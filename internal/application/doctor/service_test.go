package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/doeshing/kmd/internal/domain"
)

type fakeStore struct {
	cfg     domain.Configuration
	loadErr error
}

func (s *fakeStore) Load() (domain.Configuration, error) {
	if s.loadErr != nil {
		return domain.Configuration{}, s.loadErr
	}
	return s.cfg, nil
}

func (s *fakeStore) Snapshot() domain.Configuration { return s.cfg }

func (s *fakeStore) Set(key, value string) (domain.Configuration, error) {
	if err := s.cfg.SetValue(key, value); err != nil {
		return domain.Configuration{}, err
	}
	return s.cfg, nil
}

func (s *fakeStore) Path() string { return "/tmp/kmd/config.json" }

type fakeSecurity struct {
	err error
}

func (f *fakeSecurity) Evaluate(string) (domain.RiskAssessment, error) {
	return domain.RiskAssessment{Level: domain.RiskSafe}, f.err
}

type fakeSink struct {
	enabled bool
}

func (f *fakeSink) Copy(string) error { return nil }
func (f *fakeSink) Enabled() bool     { return f.enabled }

func findCheck(t *testing.T, report domain.HealthReport, name string) domain.HealthCheck {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %q not in report: %+v", name, report.Checks)
	return domain.HealthCheck{}
}

func TestDoctorHealthyEnvironment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("probe hit %s, want /api/tags", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := domain.DefaultConfiguration()
	cfg.OllamaURL = srv.URL

	svc := &Service{
		Store:       &fakeStore{cfg: cfg},
		Security:    &fakeSecurity{},
		Sink:        &fakeSink{enabled: true},
		ParseHotkey: func(string) error { return nil },
		Client:      srv.Client(),
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() {
		t.Fatalf("healthy environment reported failure: %+v", report.Checks)
	}
	if got := findCheck(t, report, "Ollama"); got.Status != domain.HealthOK {
		t.Errorf("Ollama check = %s (%s), want ok", got.Status, got.Details)
	}
	if got := findCheck(t, report, "Hotkey"); got.Details != cfg.Hotkey {
		t.Errorf("Hotkey details = %q, want %q", got.Details, cfg.Hotkey)
	}
}

func TestDoctorWarnsWhenOllamaUnreachable(t *testing.T) {
	cfg := domain.DefaultConfiguration()
	cfg.OllamaURL = "http://127.0.0.1:1"

	svc := &Service{
		Store:       &fakeStore{cfg: cfg},
		Security:    &fakeSecurity{},
		Sink:        &fakeSink{enabled: true},
		ParseHotkey: func(string) error { return nil },
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	check := findCheck(t, report, "Ollama")
	if check.Status != domain.HealthWarn {
		t.Fatalf("Ollama check = %s, want warn", check.Status)
	}
	if !strings.Contains(check.Details, "ollama serve") {
		t.Errorf("details %q should hint at starting the daemon", check.Details)
	}
	if report.Failed() {
		t.Error("unreachable backend is a warning, not a failure")
	}
}

func TestDoctorFailsWhenConfigUnreadable(t *testing.T) {
	svc := &Service{
		Store: &fakeStore{loadErr: errors.New("permission denied")},
	}

	report, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("Run should surface the load error")
	}
	if !report.Failed() {
		t.Error("unreadable config must fail the report")
	}
	if got := findCheck(t, report, "Config file"); got.Status != domain.HealthError {
		t.Errorf("Config file check = %s, want error", got.Status)
	}
}

func TestDoctorWarnsOnMissingHostedKey(t *testing.T) {
	cfg := domain.DefaultConfiguration()
	cfg.Provider = domain.BackendOpenAI

	svc := &Service{
		Store:       &fakeStore{cfg: cfg},
		Security:    &fakeSecurity{},
		Sink:        &fakeSink{enabled: true},
		ParseHotkey: func(string) error { return nil },
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	check := findCheck(t, report, "OpenAI")
	if check.Status != domain.HealthWarn {
		t.Fatalf("OpenAI check = %s, want warn", check.Status)
	}
	if !strings.Contains(check.Details, "config set") {
		t.Errorf("details %q should tell the user how to set the key", check.Details)
	}

	cfg.APIKeys.OpenAI = "sk-test"
	svc.Store = &fakeStore{cfg: cfg}
	report, _ = svc.Run(context.Background())
	if got := findCheck(t, report, "OpenAI"); got.Status != domain.HealthOK {
		t.Errorf("with key present check = %s, want ok", got.Status)
	}
}

func TestDoctorFailsOnBadHotkey(t *testing.T) {
	cfg := domain.DefaultConfiguration()
	cfg.Hotkey = "hyper+space"

	svc := &Service{
		Store:       &fakeStore{cfg: cfg},
		Security:    &fakeSecurity{},
		ParseHotkey: func(string) error { return errors.New(`unknown modifier "hyper"`) },
	}
	svc.Client = &http.Client{Transport: roundTripError{}}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := findCheck(t, report, "Hotkey"); got.Status != domain.HealthError {
		t.Fatalf("Hotkey check = %s, want error", got.Status)
	}
	if !report.Failed() {
		t.Error("bad hotkey must fail the report")
	}
}

func TestDoctorFailsWhenGuardrailBroken(t *testing.T) {
	cfg := domain.DefaultConfiguration()

	svc := &Service{
		Store:       &fakeStore{cfg: cfg},
		Security:    &fakeSecurity{err: errors.New("rule compile failed")},
		ParseHotkey: func(string) error { return nil },
	}
	svc.Client = &http.Client{Transport: roundTripError{}}

	report, _ := svc.Run(context.Background())
	if got := findCheck(t, report, "Guardrail"); got.Status != domain.HealthError {
		t.Fatalf("Guardrail check = %s, want error", got.Status)
	}
	if !report.Failed() {
		t.Error("broken guardrail must fail the report")
	}
}

func TestDoctorWarnsWhenClipboardMissing(t *testing.T) {
	cfg := domain.DefaultConfiguration()

	svc := &Service{
		Store:       &fakeStore{cfg: cfg},
		Security:    &fakeSecurity{},
		Sink:        &fakeSink{enabled: false},
		ParseHotkey: func(string) error { return nil },
	}
	svc.Client = &http.Client{Transport: roundTripError{}}

	report, _ := svc.Run(context.Background())
	if got := findCheck(t, report, "Clipboard"); got.Status != domain.HealthWarn {
		t.Errorf("Clipboard check = %s, want warn", got.Status)
	}
}

// roundTripError keeps probe traffic off the network in tests that do not
// care about the backend check.
type roundTripError struct{}

func (roundTripError) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial refused")
}
