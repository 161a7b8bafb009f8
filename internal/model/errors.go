package model

import "github.com/rotisserie/eris"

// ErrCapabilityUnavailable is returned when an optional capability (a
// similarity metric, a map renderer) is not available. Callers degrade
// instead of failing.
var ErrCapabilityUnavailable = eris.New("capability unavailable")
