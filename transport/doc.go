// Package transport sends requests to an HTTP backend and classifies
// failures into the shared error taxonomy.
//
// It knows nothing about request schemas or retry policy: the operation
// layer builds requests, the client package decides when to send them.
// The transport's responsibilities end at status classification,
// Retry-After parsing, and feeding backend-reported quota headers to the
// rate limiter.
package transport
