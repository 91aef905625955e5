package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/voucherdash/internal/core"
)

// PostgresStore keeps import history in PostgreSQL. Failed rows are stored
// as JSONB.
type PostgresStore struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore uses an existing pool. The caller owns and closes it.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS import_history (
			id UUID PRIMARY KEY,
			flow_id UUID NOT NULL,
			file_name TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL,
			success BOOLEAN NOT NULL,
			message TEXT NOT NULL,
			success_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			failed_rows JSONB NOT NULL DEFAULT '[]'::jsonb,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_history_submitted_at ON import_history (submitted_at DESC)`,
	}
	for _, q := range ddl {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, a core.ImportAttempt) error {
	rows, err := encodeFailedRows(a.FailedRows)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_history
			(id, flow_id, file_name, file_size, submitted_at, duration_ms, success, message,
			 success_count, failed_count, failed_rows, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13)`,
		a.ID, a.FlowID, a.FileName, a.FileSize, a.SubmittedAt, a.Duration.Milliseconds(), a.Success,
		a.Message, a.SuccessCount, a.FailedCount, string(rows), a.IPAddress, a.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("postgres: record attempt %s: %w", a.ID, err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]core.ImportAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, flow_id::text, file_name, file_size, submitted_at, duration_ms, success, message,
		        success_count, failed_count, failed_rows, ip_address, user_agent
		 FROM import_history
		 ORDER BY submitted_at DESC
		 LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: recent imports: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ImportAttempt, error) {
		var (
			a          core.ImportAttempt
			durationMs int64
			failedRows []byte
		)
		if err := row.Scan(&a.ID, &a.FlowID, &a.FileName, &a.FileSize, &a.SubmittedAt, &durationMs,
			&a.Success, &a.Message, &a.SuccessCount, &a.FailedCount, &failedRows, &a.IPAddress, &a.UserAgent); err != nil {
			return a, err
		}
		a.SubmittedAt = a.SubmittedAt.UTC()
		a.Duration = time.Duration(durationMs) * time.Millisecond
		var derr error
		a.FailedRows, derr = decodeFailedRows(failedRows)
		return a, derr
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan imports: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_history WHERE submitted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge imports: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the pool when the store opened it itself.
func (s *PostgresStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}
