package sampler

import "errors"

// ErrSourceUnavailable indicates the underlying Source failed a read.
// The accompanying reading is the last known value.
var ErrSourceUnavailable = errors.New("sampler: source unavailable")
