// Package gojob bridges the linking job contract onto go-job queues so hosts
// can run reconciliation sweeps on their own workers.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/streamkit/go-linking/core"
)

const (
	JobIDReconcileSweep   = "linking.reconcile.sweep"
	JobIDPrunePendingAuth = "linking.pending_auth.prune"
)

// ToExecutionMessage maps a linking runtime message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message into the linking contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	_, err := a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
	return err
}

// NewReconcileSweepMessage builds the periodic sweep job. The idempotency key
// is bucketed by interval so a crashed scheduler cannot double-enqueue the
// same window.
func NewReconcileSweepMessage(now time.Time, interval time.Duration) *core.JobExecutionMessage {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	bucket := now.UTC().Truncate(interval)
	return &core.JobExecutionMessage{
		JobID: JobIDReconcileSweep,
		Parameters: map[string]any{
			"window_start": bucket.Format(time.RFC3339),
		},
		IdempotencyKey: fmt.Sprintf("%s:%d", JobIDReconcileSweep, bucket.Unix()),
		DedupPolicy:    "drop",
	}
}

// NewPrunePendingAuthMessage builds the expired-nonce cleanup job.
func NewPrunePendingAuthMessage(now time.Time) *core.JobExecutionMessage {
	bucket := now.UTC().Truncate(time.Hour)
	return &core.JobExecutionMessage{
		JobID:          JobIDPrunePendingAuth,
		Parameters:     map[string]any{},
		IdempotencyKey: fmt.Sprintf("%s:%d", JobIDPrunePendingAuth, bucket.Unix()),
		DedupPolicy:    "drop",
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var _ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
