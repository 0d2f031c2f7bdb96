package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// ReconcileTask triggers one cascade reconciliation run.
	ReconcileTask = "cascade:reconcile"

	// CascadeQueue is the asynq queue the worker consumes with concurrency 1,
	// so at most one reconciliation run is in flight.
	CascadeQueue = "cascade"
)

// ReconcilePayload carries the trigger identity into the run's metadata.
type ReconcilePayload struct {
	TriggerID string `json:"trigger_id"`
}

// EnqueueReconcile schedules one reconciliation run. uniqueFor suppresses
// duplicate triggers while a run is pending or executing. MaxRetry is zero on
// purpose: a failed run is not retried immediately, the next scheduled run
// owns the same window again.
func EnqueueReconcile(ctx context.Context, client *asynq.Client, triggerID string, uniqueFor time.Duration) error {
	data, err := json.Marshal(ReconcilePayload{TriggerID: triggerID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(ReconcileTask, data)
	opts := []asynq.Option{
		asynq.Queue(CascadeQueue),
		asynq.MaxRetry(0),
	}
	if uniqueFor > 0 {
		opts = append(opts, asynq.Unique(uniqueFor))
	}

	if _, err := client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue reconcile task: %w", err)
	}
	return nil
}
