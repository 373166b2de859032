// Package probes builds the standard health probes.
//
// Memory and CPU probes classify a reading against a threshold: critical
// above the threshold, warning above 80% of it, healthy otherwise. Both
// boundaries are strict, so a reading equal to the threshold is a warning.
package probes
