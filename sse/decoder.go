package sse

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"
)

// EndOfStreamSentinel is the payload some backends send as the final data
// frame. A frame whose payload is exactly this value ends the stream
// regardless of its event type.
const EndOfStreamSentinel = "[DONE]"

// ErrInterrupted is returned by Finish when the byte source ended with
// unterminated frame data still buffered and no prior frame signaled a
// clean end of stream.
var ErrInterrupted = errors.New("sse: stream interrupted mid-frame")

// Frame is one decoded server-push frame. Frames are immutable once
// emitted.
type Frame struct {
	// Event is the event type from the "event:" line; empty means the
	// default "message" type.
	Event string

	// Data is the contents of all "data:" lines joined with "\n".
	Data string

	// ID is the last-event-id from an "id:" line, if present.
	ID string

	// Retry is the reconnection hint from a "retry:" line, zero when absent.
	Retry time.Duration

	// Comment marks a frame that contained only comment lines; backends
	// send these as keep-alives.
	Comment bool
}

// IsRetryHint reports whether the frame carries only a retry hint.
func (f Frame) IsRetryHint() bool {
	return f.Retry > 0 && f.Data == "" && f.Event == ""
}

// EndOfStream reports whether the payload is the termination sentinel.
func (f Frame) EndOfStream() bool {
	return f.Data == EndOfStreamSentinel
}

// Decoder incrementally turns raw byte chunks into discrete frames. Feed
// chunks with Write and pull completed frames with Next; the partial-line
// buffer persists between calls, so a frame terminator split across two
// chunks is still recognized once the second chunk arrives.
//
// Invalid byte sequences are passed through leniently rather than failing.
// State is scoped to a single connection; a Decoder is not safe for
// concurrent use.
type Decoder struct {
	buf   []byte
	lines []string
	done  bool
}

// NewDecoder creates a decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write appends a raw chunk to the decode buffer.
func (d *Decoder) Write(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Next returns the next complete frame, or ok=false when no complete
// frame is buffered yet. A frame is complete at a blank line in either
// line-ending style. A partial line is never lost except exactly at a
// recognized frame boundary.
func (d *Decoder) Next() (Frame, bool) {
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return Frame{}, false
		}

		line := strings.TrimSuffix(string(d.buf[:i]), "\r")
		d.buf = d.buf[i+1:]

		if line != "" {
			d.lines = append(d.lines, line)
			continue
		}
		if len(d.lines) == 0 {
			// Stray blank line between frames.
			continue
		}

		frame := parseFrame(d.lines)
		d.lines = nil
		if frame.EndOfStream() {
			d.done = true
		}
		return frame, true
	}
}

// Done reports whether a prior frame signaled a clean end of stream.
func (d *Decoder) Done() bool {
	return d.done
}

// Finish is called when the underlying byte source ends. It returns
// ErrInterrupted when unterminated frame data is still buffered and no
// clean end of stream was seen.
func (d *Decoder) Finish() error {
	if d.done {
		return nil
	}
	if len(d.lines) > 0 || len(bytes.TrimSpace(d.buf)) > 0 {
		return ErrInterrupted
	}
	return nil
}

// parseFrame assembles a frame from the accumulated field lines.
func parseFrame(lines []string) Frame {
	var frame Frame
	var data []string
	comment := false

	for _, line := range lines {
		if strings.HasPrefix(line, ":") {
			comment = true
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			// A line with no colon is a field with an empty value.
			field = line
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			frame.Event = value
		case "data":
			data = append(data, value)
		case "id":
			frame.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				frame.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	frame.Data = strings.Join(data, "\n")
	frame.Comment = comment && frame.Event == "" && frame.Data == "" && frame.ID == "" && frame.Retry == 0
	return frame
}
