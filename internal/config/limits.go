package config

import "time"

const (
	// CascadeBatchSize is the number of violating parents a single fixpoint
	// iteration fixes. Batches are small enough to keep each UPDATE short
	// lived; convergence is bounded by tree depth x (violations / batch).
	CascadeBatchSize = 100

	// SweepUserPageSize is how many user ids the retroactive sweep loads per
	// page while walking all accounts in ascending id order.
	SweepUserPageSize = 100

	// StatsSizeBudget caps how many EXISTS files (in creation order) the
	// stats aggregation sums. Above the budget the reported total size is a
	// floor, flagged inexact.
	StatsSizeBudget = 10000

	// StatsFileCountCap caps the reported file count. Counts above it are
	// reported as the cap, flagged inexact.
	StatsFileCountCap = 1000

	// DedupeMaxAttempts is how many times one deduplication batch is retried
	// before the whole run aborts. Progress from earlier batches is kept.
	DedupeMaxAttempts = 10

	// DedupePause is the fixed sleep between deduplication batches and
	// between retries of a failed batch, bounding database load.
	DedupePause = 5 * time.Second
)
