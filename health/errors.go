package health

import "errors"

// ErrCheckTimeout marks a check skipped because the probe budget ran out
// before it was reached.
var ErrCheckTimeout = errors.New("health: check timeout")
