package stream

import "time"

// Phase is the lifecycle phase of one session. It only moves forward:
// NotStarted, Active, then exactly one of Completed or Errored.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseActive
	PhaseCompleted
	PhaseErrored
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not-started"
	case PhaseActive:
		return "active"
	case PhaseCompleted:
		return "completed"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Usage holds running consumed-unit counters reported by the backend.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Total returns the combined consumed units.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Start announces the stream and carries its identifier.
type Start struct {
	ID    string
	Model string
	Usage Usage
}

// Delta carries one incremental content fragment. Tag identifies the
// delta kind ("text_delta", "input_json_delta", ...); Text is the fragment
// applied to that kind's buffer.
type Delta struct {
	Tag  string
	Text string
}

// Update carries message-level terminal fields set before the stream stops.
type Update struct {
	StopReason string
	Usage      Usage
}

// Event is one domain event pulled from a session. Exactly one of the
// pointer fields is set, or Completed is true for the final event of a
// cleanly finished stream.
type Event struct {
	Start     *Start
	Delta     *Delta
	Update    *Update
	Completed bool
}

// Result is a snapshot of everything the session accumulated. It is the
// best-effort partial result when the stream was interrupted.
type Result struct {
	ID           string
	Model        string
	Text         string
	RawFragments string
	Extra        map[string]string
	StopReason   string
	Usage        Usage
	Interrupted  bool

	// RetryAfter is the last server retry hint seen on the stream, zero
	// when none was sent. After an interruption it is the server's advice
	// on when a new stream may be opened.
	RetryAfter time.Duration
}

// Monitor receives session lifecycle signals so the caller can keep
// circuit-breaker and rate-limiter bookkeeping without the session
// depending on either. All methods are called at most once per session.
type Monitor interface {
	// HardFailure reports a connection loss before any start frame.
	HardFailure(err error)

	// Completed reports a cleanly finished stream with confirmed usage.
	Completed(usage Usage)

	// Interrupted reports a soft failure after the stream became active.
	Interrupted(err error)

	// Abandoned reports that the caller closed the session before it
	// finished. Abandonment releases resources but is never a failure.
	Abandoned()
}

// NoopMonitor is the default Monitor; it ignores every signal.
type NoopMonitor struct{}

func (NoopMonitor) HardFailure(err error) {}
func (NoopMonitor) Completed(usage Usage) {}
func (NoopMonitor) Interrupted(err error) {}
func (NoopMonitor) Abandoned()            {}
