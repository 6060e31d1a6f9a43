// Package observe provides observability primitives for backend calls.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The client package wires a Recorder around every
// orchestrated call so each one produces exactly one span, one set of
// counters, and one structured log line.
package observe
