package domain

import "time"

// PresentationState is the engine's single visibility/query state. Exactly
// one value holds at any time; only the engine loop writes it.
type PresentationState string

const (
	StateHidden        PresentationState = "hidden"
	StateVisible       PresentationState = "visible"
	StateBusy          PresentationState = "busy"
	StateShowingResult PresentationState = "showing_result"
	StateShowingError  PresentationState = "showing_error"
)

// Occupied reports whether the prompt is on screen in any form.
func (s PresentationState) Occupied() bool {
	return s != StateHidden
}

// Query is one submitted request. Generation is assigned by the engine at
// submission time and is the staleness device: results whose generation no
// longer matches the latest submission are discarded on arrival.
type Query struct {
	ID          string
	Text        string
	Backend     BackendID
	SubmittedAt time.Time
	Generation  uint64
}

// CommandResult is the dispatcher's one-shot report for a query.
type CommandResult struct {
	Generation uint64
	Backend    BackendID
	Text       string
	Risk       RiskAssessment
	FromCache  bool
	Elapsed    time.Duration
	Err        error
}

// OK reports whether the query produced a usable command.
func (r CommandResult) OK() bool {
	return r.Err == nil
}

// Kind classifies the failure for the presentation layer and the control API.
func (r CommandResult) Kind() ErrorKind {
	if r.Err == nil {
		return ""
	}
	return KindOf(r.Err)
}

// ErrorKind is the closed set of failure classes surfaced to the
// presentation layer.
type ErrorKind string

const (
	ErrKindTimeout        ErrorKind = "timeout"
	ErrKindBackend        ErrorKind = "backend_error"
	ErrKindUnknownBackend ErrorKind = "unknown_backend"
	ErrKindClipboard      ErrorKind = "clipboard_unavailable"
	ErrKindInternal       ErrorKind = "internal"
)

// ResultSummary is the displayable remnant of the last delivered result,
// kept in the status snapshot.
type ResultSummary struct {
	Text      string    `json:"text"`
	Backend   BackendID `json:"backend"`
	Risk      RiskLevel `json:"risk"`
	FromCache bool      `json:"from_cache"`
	At        time.Time `json:"at"`
}

// ErrorSummary is the displayable remnant of the last surfaced error.
type ErrorSummary struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// EngineStatus is a read-only snapshot published by the engine loop for the
// control API and CLI. Readers never touch loop state directly.
type EngineStatus struct {
	State         PresentationState `json:"state"`
	Generation    uint64            `json:"generation"`
	ActiveBackend BackendID         `json:"active_backend"`
	HotkeyBound   bool              `json:"hotkey_bound"`
	LastResult    *ResultSummary    `json:"last_result,omitempty"`
	LastError     *ErrorSummary     `json:"last_error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
}
