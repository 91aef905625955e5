package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/voucherdash/internal/core"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore keeps import history in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path. All access goes through one
// connection so concurrent writers never see SQLITE_BUSY.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS import_history (
			id TEXT PRIMARY KEY,
			flow_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			submitted_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			success INTEGER NOT NULL,
			message TEXT NOT NULL,
			success_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			failed_rows TEXT NOT NULL,
			ip_address TEXT NOT NULL,
			user_agent TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_history_submitted_at ON import_history(submitted_at)`,
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite: init: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, a core.ImportAttempt) error {
	rows, err := encodeFailedRows(a.FailedRows)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO import_history
			(id, flow_id, file_name, file_size, submitted_at, duration_ms, success, message,
			 success_count, failed_count, failed_rows, ip_address, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FlowID, a.FileName, a.FileSize, a.SubmittedAt.UnixMilli(), a.Duration.Milliseconds(),
		a.Success, a.Message, a.SuccessCount, a.FailedCount, string(rows), a.IPAddress, a.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record attempt %s: %w", a.ID, err)
	}
	s.logger.Debug("sqlite: recorded import attempt", "id", a.ID, "success", a.Success)
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]core.ImportAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, flow_id, file_name, file_size, submitted_at, duration_ms, success, message,
		        success_count, failed_count, failed_rows, ip_address, user_agent
		 FROM import_history
		 ORDER BY submitted_at DESC, rowid DESC
		 LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent imports: %w", err)
	}
	defer rows.Close()

	var out []core.ImportAttempt
	for rows.Next() {
		var (
			a           core.ImportAttempt
			submittedMs int64
			durationMs  int64
			failedRows  string
		)
		if err := rows.Scan(&a.ID, &a.FlowID, &a.FileName, &a.FileSize, &submittedMs, &durationMs,
			&a.Success, &a.Message, &a.SuccessCount, &a.FailedCount, &failedRows, &a.IPAddress, &a.UserAgent); err != nil {
			return nil, fmt.Errorf("sqlite: scan import: %w", err)
		}
		a.SubmittedAt = time.UnixMilli(submittedMs).UTC()
		a.Duration = time.Duration(durationMs) * time.Millisecond
		if a.FailedRows, err = decodeFailedRows([]byte(failedRows)); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM import_history WHERE submitted_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge imports: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeFailedRows(rows []core.FailedRow) ([]byte, error) {
	if rows == nil {
		rows = []core.FailedRow{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode failed rows: %w", err)
	}
	return b, nil
}

func decodeFailedRows(b []byte) ([]core.FailedRow, error) {
	var rows []core.FailedRow
	if len(b) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("decode failed rows: %w", err)
	}
	return rows, nil
}
