package probes

import "errors"

// ErrInvalidThreshold indicates a threshold outside its valid range.
var ErrInvalidThreshold = errors.New("probes: invalid threshold")
