package state

import (
	"context"
	"time"
)

// SnapshotTTL bounds how long raw fetch snapshots and error records are
// kept. 72 hours covers a weekend of unattended failures.
const SnapshotTTL = 72 * time.Hour

// Store holds transient pipeline state: fetch cursors, raw response
// snapshots, per-item error records and the per-pipeline next-run gate.
// All keys are scoped by pipeline namespace.
type Store interface {
	// Save writes a value under jobs:{namespace}:{key}. A zero ttl means
	// no expiry.
	Save(ctx context.Context, namespace string, key string, value string, ttl time.Duration) error
	// Get reads a value; returns the empty string when the key is absent.
	Get(ctx context.Context, namespace string, key string) (string, error)
	// SaveError records a failed item under jobs:{namespace}:error:{itemID}
	// with SnapshotTTL, JSON-encoding the payload.
	SaveError(ctx context.Context, namespace string, itemID string, payload any) error
	// NextRun returns the pipeline's next eligible run time, or the zero
	// time when unset.
	NextRun(ctx context.Context, namespace string) (time.Time, error)
	// SetNextRun persists the pipeline's next eligible run time.
	SetNextRun(ctx context.Context, namespace string, t time.Time) error
}
