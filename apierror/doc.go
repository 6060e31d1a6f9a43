// Package apierror defines the error taxonomy shared by the client core.
//
// Every error surfaced by the core carries a Kind, an optional retry-after
// hint, and optional structured detail, which is enough for a caller to
// decide whether to surface it, retry at a higher level, or treat it as
// fatal. Classification survives wrapping: helpers like IsRetryable and
// RetryAfterHint walk the chain with errors.As.
package apierror
