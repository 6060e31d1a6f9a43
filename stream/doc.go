// Package stream assembles typed domain events from one server-push
// event stream.
//
// A Session wraps one sse.Decoder over one underlying connection. The
// caller pulls events one at a time with Recv; no event is produced until
// a complete frame has been decoded, and backpressure is inherited
// directly from the pace at which the caller pulls. Circuit-breaker and
// rate-limiter bookkeeping is delegated to a Monitor supplied by the
// caller, which keeps this package free of any dependency on the gating
// primitives.
package stream
