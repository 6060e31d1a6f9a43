package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/clientops/clientops/apierror"
	"github.com/clientops/clientops/observe"
	"github.com/clientops/clientops/sse"
)

// readChunkSize is the transport read granularity. Reads happen one chunk
// at a time on demand, so a slow consumer delays the next network read
// instead of growing an internal buffer.
const readChunkSize = 4096

// envelope is the structured payload carried by data frames.
type envelope struct {
	Type    string `json:"type"`
	Message *struct {
		ID    string       `json:"id"`
		Model string       `json:"model"`
		Usage usagePayload `json:"usage"`
	} `json:"message,omitempty"`
	Index int `json:"index"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		Thinking    string `json:"thinking"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Usage *usagePayload `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type usagePayload struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// SessionConfig configures a stream session.
type SessionConfig struct {
	// Source is the raw byte source for one underlying connection.
	// The session owns it and closes it on completion, failure, or Close.
	Source io.ReadCloser

	// Logger receives decode diagnostics. Default: discard.
	Logger observe.Logger

	// Monitor receives lifecycle signals. Default: NoopMonitor.
	Monitor Monitor
}

// Session assembles domain events from the frames of one server-push
// stream. It is pull-based, finite, and non-restartable: one session
// corresponds to exactly one underlying connection, events are delivered
// in exactly the order their frames were decoded, and no internal
// buffering beyond one partial frame is permitted.
//
// A session is driven by a single caller and is not safe for concurrent use.
type Session struct {
	source  io.ReadCloser
	dec     *sse.Decoder
	logger  observe.Logger
	monitor Monitor

	phase      Phase
	id         string
	model      string
	text       []byte
	fragments  []byte
	extra      map[string][]byte
	usage      Usage
	stopReason string
	retryHint  time.Duration // last retry-hint frame seen
	bytes      int64

	chunk       [readChunkSize]byte
	err         error
	interrupted bool
	closed      bool
}

// NewSession creates a session over one raw byte source. The session
// starts in PhaseNotStarted; the first start frame moves it to PhaseActive.
func NewSession(config SessionConfig) *Session {
	if config.Logger == nil {
		config.Logger = observe.NewDiscardLogger()
	}
	if config.Monitor == nil {
		config.Monitor = NoopMonitor{}
	}
	return &Session{
		source:  config.Source,
		dec:     sse.NewDecoder(),
		logger:  config.Logger,
		monitor: config.Monitor,
		extra:   make(map[string][]byte),
	}
}

// Recv returns the next domain event. It blocks on the underlying
// transport only when no complete frame is buffered. It returns io.EOF
// after the completion event of a cleanly finished stream, and the
// terminal error thereafter for a failed one.
func (s *Session) Recv(ctx context.Context) (Event, error) {
	switch s.phase {
	case PhaseCompleted:
		return Event{}, io.EOF
	case PhaseErrored:
		return Event{}, s.err
	}

	for {
		if err := ctx.Err(); err != nil {
			return Event{}, s.finishCtx(ctx, err)
		}

		if frame, ok := s.dec.Next(); ok {
			event, emitted, err := s.handleFrame(ctx, frame)
			if err != nil {
				return Event{}, err
			}
			if emitted {
				return event, nil
			}
			continue
		}

		n, err := s.source.Read(s.chunk[:])
		if n > 0 {
			s.bytes += int64(n)
			s.dec.Write(s.chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Drain every frame the final chunk completed. The last
				// read may deliver data together with io.EOF, and a stop
				// frame can sit behind non-emitting frames in the buffer.
				for {
					frame, ok := s.dec.Next()
					if !ok {
						break
					}
					event, emitted, ferr := s.handleFrame(ctx, frame)
					if ferr != nil {
						return Event{}, ferr
					}
					if emitted {
						return event, nil
					}
				}
				return Event{}, s.finishEOF()
			}
			return Event{}, s.finishReadError(ctx, err)
		}
	}
}

// handleFrame applies one decoded frame. emitted is false for frames that
// produce no domain event (keep-alives, retry hints, skipped payloads).
func (s *Session) handleFrame(ctx context.Context, frame sse.Frame) (Event, bool, error) {
	if frame.Comment {
		return Event{}, false, nil
	}
	if frame.IsRetryHint() {
		s.retryHint = frame.Retry
		return Event{}, false, nil
	}
	if frame.EndOfStream() {
		return s.finishCompleted(), true, nil
	}

	var env envelope
	parseErr := json.Unmarshal([]byte(frame.Data), &env)

	// An explicit error event is always terminal, parseable or not.
	if frame.Event == "error" || (parseErr == nil && env.Type == "error") {
		msg := "stream error"
		if parseErr == nil && env.Error != nil {
			msg = env.Error.Message
		}
		return Event{}, false, s.finishErrorFrame(ctx, msg)
	}

	if parseErr != nil {
		s.logger.Warn(ctx, "skipping undecodable stream payload",
			observe.Field{Key: "event", Value: frame.Event},
			observe.Field{Key: "reason", Value: parseErr.Error()},
		)
		return Event{}, false, nil
	}

	eventType := env.Type
	if eventType == "" {
		eventType = frame.Event
	}

	switch eventType {
	case "message_start":
		s.phase = PhaseActive
		if env.Message != nil {
			s.id = env.Message.ID
			s.model = env.Message.Model
			s.usage.InputTokens = env.Message.Usage.InputTokens
			s.usage.OutputTokens = env.Message.Usage.OutputTokens
		}
		return Event{Start: &Start{ID: s.id, Model: s.model, Usage: s.usage}}, true, nil

	case "content_block_delta":
		if env.Delta == nil {
			return Event{}, false, nil
		}
		switch env.Delta.Type {
		case "text_delta":
			s.text = append(s.text, env.Delta.Text...)
			return Event{Delta: &Delta{Tag: env.Delta.Type, Text: env.Delta.Text}}, true, nil
		case "input_json_delta":
			s.fragments = append(s.fragments, env.Delta.PartialJSON...)
			return Event{Delta: &Delta{Tag: env.Delta.Type, Text: env.Delta.PartialJSON}}, true, nil
		case "thinking_delta":
			s.extra[env.Delta.Type] = append(s.extra[env.Delta.Type], env.Delta.Thinking...)
			return Event{Delta: &Delta{Tag: env.Delta.Type, Text: env.Delta.Thinking}}, true, nil
		default:
			// Unrecognized delta kinds are ignored, not errors.
			return Event{}, false, nil
		}

	case "message_delta":
		if env.Delta != nil && env.Delta.StopReason != "" {
			s.stopReason = env.Delta.StopReason
		}
		if env.Usage != nil {
			if env.Usage.InputTokens > 0 {
				s.usage.InputTokens = env.Usage.InputTokens
			}
			if env.Usage.OutputTokens > 0 {
				s.usage.OutputTokens = env.Usage.OutputTokens
			}
		}
		return Event{Update: &Update{StopReason: s.stopReason, Usage: s.usage}}, true, nil

	case "message_stop":
		return s.finishCompleted(), true, nil

	case "content_block_start", "content_block_stop", "ping":
		return Event{}, false, nil

	default:
		s.logger.Debug(ctx, "ignoring unrecognized stream event",
			observe.Field{Key: "event", Value: eventType},
		)
		return Event{}, false, nil
	}
}

// finishCompleted moves the session to PhaseCompleted and reports the
// confirmed usage to the monitor.
func (s *Session) finishCompleted() Event {
	s.phase = PhaseCompleted
	s.closeSource()
	s.monitor.Completed(s.usage)
	return Event{Completed: true}
}

// finishEOF classifies an end of input that arrived without a stop frame.
// Before any start frame it is a hard failure; after, a soft one with the
// partial result left readable via Result.
func (s *Session) finishEOF() error {
	s.closeSource()

	underlying := s.dec.Finish()
	if underlying == nil {
		underlying = io.ErrUnexpectedEOF
	}

	if s.phase == PhaseNotStarted {
		err := apierror.Stream("connection closed before stream start", underlying)
		s.phase = PhaseErrored
		s.err = err
		s.monitor.HardFailure(err)
		return err
	}

	err := apierror.Stream("stream interrupted", underlying)
	s.phase = PhaseErrored
	s.err = err
	s.interrupted = true
	s.logger.Warn(context.Background(), "stream interrupted before stop frame",
		observe.Field{Key: "stream_id", Value: s.id},
		observe.Field{Key: "bytes", Value: s.bytes},
	)
	s.monitor.Interrupted(err)
	return err
}

// finishReadError handles a transport error on a read-next-chunk step.
func (s *Session) finishReadError(ctx context.Context, readErr error) error {
	if errors.Is(readErr, context.Canceled) {
		return s.finishCtx(ctx, readErr)
	}

	s.closeSource()

	if s.phase == PhaseNotStarted {
		err := apierror.Stream("connection lost before stream start", readErr)
		s.phase = PhaseErrored
		s.err = err
		s.monitor.HardFailure(err)
		return err
	}

	err := apierror.Stream("connection lost mid-stream", readErr)
	s.phase = PhaseErrored
	s.err = err
	s.interrupted = true
	s.logger.Warn(ctx, "stream connection lost",
		observe.Field{Key: "stream_id", Value: s.id},
		observe.Field{Key: "reason", Value: readErr.Error()},
	)
	s.monitor.Interrupted(err)
	return err
}

// finishErrorFrame handles an explicit error frame from the backend.
// It is stream-local: the circuit breaker is left untouched.
func (s *Session) finishErrorFrame(ctx context.Context, msg string) error {
	s.closeSource()

	err := apierror.Stream(msg, nil)
	if s.phase == PhaseActive {
		s.interrupted = true
	}
	s.phase = PhaseErrored
	s.err = err
	s.logger.Warn(ctx, "stream terminated by error frame",
		observe.Field{Key: "stream_id", Value: s.id},
		observe.Field{Key: "reason", Value: msg},
	)
	s.monitor.Interrupted(err)
	return err
}

// finishCtx handles caller cancellation. Deadline expiry on an active
// stream is a soft failure; plain cancellation is abandonment and is not
// reported to the monitor at all.
func (s *Session) finishCtx(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return s.finishReadErrorDeadline(ctx, err)
	}

	s.closeSource()
	s.phase = PhaseErrored
	s.err = err
	s.monitor.Abandoned()
	return err
}

func (s *Session) finishReadErrorDeadline(ctx context.Context, cause error) error {
	s.closeSource()

	if s.phase == PhaseNotStarted {
		err := apierror.Stream("timeout before stream start", cause)
		s.phase = PhaseErrored
		s.err = err
		s.monitor.HardFailure(err)
		return err
	}

	err := apierror.Stream("timeout on active stream", cause)
	s.phase = PhaseErrored
	s.err = err
	s.interrupted = true
	s.monitor.Interrupted(err)
	return err
}

// Close abandons the session. It releases the underlying transport
// promptly and is never recorded as a circuit-breaker failure. Safe to
// call at any time, including after completion.
func (s *Session) Close() error {
	if s.phase == PhaseNotStarted || s.phase == PhaseActive {
		s.phase = PhaseErrored
		s.err = apierror.Stream("session closed by caller", nil)
		s.monitor.Abandoned()
	}
	return s.closeSource()
}

func (s *Session) closeSource() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.source == nil {
		return nil
	}
	return s.source.Close()
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Bytes returns the number of raw bytes read from the transport.
func (s *Session) Bytes() int64 {
	return s.bytes
}

// Result returns a snapshot of the accumulated stream state. After a soft
// failure it is the best-effort partial result with Interrupted set.
func (s *Session) Result() Result {
	extra := make(map[string]string, len(s.extra))
	for k, v := range s.extra {
		extra[k] = string(v)
	}
	return Result{
		ID:           s.id,
		Model:        s.model,
		Text:         string(s.text),
		RawFragments: string(s.fragments),
		Extra:        extra,
		StopReason:   s.stopReason,
		Usage:        s.usage,
		Interrupted:  s.interrupted,
		RetryAfter:   s.retryHint,
	}
}
