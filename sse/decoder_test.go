package sse

import (
	"errors"
	"testing"
	"time"
)

func collectFrames(d *Decoder) []Frame {
	var frames []Frame
	for {
		frame, ok := d.Next()
		if !ok {
			return frames
		}
		frames = append(frames, frame)
	}
}

func TestDecoder_SingleFrame(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("event: message_start\ndata: {\"type\":\"message_start\"}\n\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false, want a frame")
	}
	if frame.Event != "message_start" {
		t.Errorf("Event = %q, want %q", frame.Event, "message_start")
	}
	if frame.Data != `{"type":"message_start"}` {
		t.Errorf("Data = %q", frame.Data)
	}

	if _, ok := d.Next(); ok {
		t.Errorf("Next() returned a second frame, want none")
	}
}

func TestDecoder_MultiLineDataJoined(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("data: line one\ndata: line two\n\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false")
	}
	if frame.Data != "line one\nline two" {
		t.Errorf("Data = %q, want lines joined with \\n", frame.Data)
	}
}

func TestDecoder_AllFields(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("event: update\nid: 42\nretry: 1500\ndata: payload\n\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false")
	}
	if frame.Event != "update" {
		t.Errorf("Event = %q, want update", frame.Event)
	}
	if frame.ID != "42" {
		t.Errorf("ID = %q, want 42", frame.ID)
	}
	if frame.Retry != 1500*time.Millisecond {
		t.Errorf("Retry = %v, want 1.5s", frame.Retry)
	}
	if frame.Data != "payload" {
		t.Errorf("Data = %q, want payload", frame.Data)
	}
}

func TestDecoder_SplitChunksEqualSingleChunk(t *testing.T) {
	raw := "event: a\ndata: one\n\nevent: b\ndata: two\n\nretry: 300\n\ndata: [DONE]\n\n"

	whole := NewDecoder()
	whole.Write([]byte(raw))
	want := collectFrames(whole)

	// Feed the same bytes one at a time, splitting even the \n\n terminator.
	split := NewDecoder()
	var got []Frame
	for i := 0; i < len(raw); i++ {
		split.Write([]byte{raw[i]})
		got = append(got, collectFrames(split)...)
	}

	if len(got) != len(want) {
		t.Fatalf("frames = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDecoder_CRLFTerminators(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("event: x\r\ndata: y\r\n\r\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false")
	}
	if frame.Event != "x" || frame.Data != "y" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestDecoder_CommentFrame(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte(": keep-alive\n\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false")
	}
	if !frame.Comment {
		t.Errorf("Comment = false, want true")
	}
}

func TestDecoder_CommentLineInsideDataFrame(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte(": heartbeat\ndata: real\n\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false")
	}
	if frame.Comment {
		t.Errorf("Comment = true for a frame that carries data")
	}
	if frame.Data != "real" {
		t.Errorf("Data = %q, want real", frame.Data)
	}
}

func TestDecoder_RetryHintFrame(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("retry: 2000\n\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false")
	}
	if !frame.IsRetryHint() {
		t.Errorf("IsRetryHint() = false, want true")
	}
	if frame.Retry != 2*time.Second {
		t.Errorf("Retry = %v, want 2s", frame.Retry)
	}
}

func TestDecoder_EndOfStreamSentinel(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("data: [DONE]\n\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false")
	}
	if !frame.EndOfStream() {
		t.Errorf("EndOfStream() = false, want true")
	}
	if !d.Done() {
		t.Errorf("Done() = false, want true")
	}
	if err := d.Finish(); err != nil {
		t.Errorf("Finish() = %v, want nil", err)
	}
}

func TestDecoder_FinishWithLeftoverDataErrors(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("data: truncat"))

	if _, ok := d.Next(); ok {
		t.Fatalf("Next() returned a frame from a partial line")
	}
	if err := d.Finish(); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Finish() = %v, want ErrInterrupted", err)
	}
}

func TestDecoder_FinishCleanWhenEmpty(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("data: complete\n\n"))
	d.Next()

	if err := d.Finish(); err != nil {
		t.Errorf("Finish() = %v, want nil; all buffered frames were consumed", err)
	}
}

func TestDecoder_StrayBlankLinesSkipped(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("\n\n\ndata: a\n\n\n\ndata: b\n\n"))

	frames := collectFrames(d)
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if frames[0].Data != "a" || frames[1].Data != "b" {
		t.Errorf("frames = %+v", frames)
	}
}

func TestDecoder_ValueSpaceTrimming(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("data:no-space\ndata:  one-space-kept\n\n"))

	frame, ok := d.Next()
	if !ok {
		t.Fatalf("Next() ok = false")
	}
	// Only the single leading space after the colon is stripped.
	if frame.Data != "no-space\n one-space-kept" {
		t.Errorf("Data = %q", frame.Data)
	}
}
