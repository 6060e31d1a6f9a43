// Package sse decodes the text-based, newline-delimited, blank-line
// terminated framing protocol used by server-push event streams.
//
// The decoder is a leaf: it consumes byte chunks incrementally, holds at
// most one partial frame, and yields frames lazily as the caller pulls
// them. It has no opinion about frame payloads; assembling frames into
// domain events is the stream package's job.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html for
// the wire format.
package sse
