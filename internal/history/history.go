// Package history persists import attempts for the import history view and
// the retention scheduler.
//
// Three backends implement Store: PostgreSQL (pgx pool), SQLite (pure Go,
// single file) and an in-memory ring for local runs. Open picks one from
// configuration.
package history

import (
	"context"
	"time"

	"github.com/JonMunkholm/voucherdash/internal/core"
)

// Store records and lists import attempts.
type Store interface {
	// Init creates the backing tables if needed. It is idempotent.
	Init(ctx context.Context) error
	Record(ctx context.Context, attempt core.ImportAttempt) error
	// Recent returns up to limit attempts, newest first.
	Recent(ctx context.Context, limit int) ([]core.ImportAttempt, error)
	// PurgeOlderThan deletes attempts submitted before cutoff.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

const (
	// DefaultRecentLimit is used when a caller passes a non-positive limit.
	DefaultRecentLimit = 20
	// MaxRecentLimit caps a single Recent call.
	MaxRecentLimit = 200
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}
