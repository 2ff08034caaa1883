// Package query implements the orchestrator of spec.md §4.I: it
// materializes observation dates, plans a Select's features with
// chronoquery/planner, and evaluates them per entity (optionally in
// parallel) with chronoquery/eval, producing a row-oriented value
// matrix aligned with output feature names.
package query

// Config is the query-level configuration of spec.md §6.3.
type Config struct {
	// Parallel enables per-entity worker-pool execution (spec.md §5).
	Parallel bool
	// IncludeEventsOnObsDate governs whether the T-touching endpoint of
	// a materialized window includes events timestamped exactly at the
	// observation time (spec.md §4.B, interval.Config).
	IncludeEventsOnObsDate bool
	// Workers overrides the worker pool size; 0 means runtime.NumCPU().
	Workers int
	// ChunkSize batches entities per worker-pool job when > 0 (spec.md
	// §6.5 "optional chunk size"); 0 processes one entity per job.
	ChunkSize int
}
