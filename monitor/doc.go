// Package monitor aggregates resource, request and probe state.
//
// A Monitor composes sampler and request-tracker readings into immutable
// Snapshots, keeps a bounded history of them on a collection tick and builds
// the health report served to clients. Readings are fail-soft: a failed
// sub-reading is logged and its last known value used, so a Snapshot is
// always produced.
//
// Construct one Monitor at startup and pass it to whatever needs it.
package monitor
