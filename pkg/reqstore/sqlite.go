package reqstore

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aptmgmt/decisioncore/pkg/sqliteutil"
)

// ErrUnauthorized is returned by SQLiteStore.ListAll when the supplied admin
// key does not match the configured one.
var ErrUnauthorized = errors.New("reqstore: invalid admin key")

// SQLiteStore is the reference Client implementation: a local SQLite table
// of resident requests, opened the same way every other SQLite-backed
// component in this core opens its database.
type SQLiteStore struct {
	db       *sql.DB
	adminKey string
}

// Open opens (creating if necessary) a request store at path, gating
// ListAll behind adminKey.
func Open(path, adminKey string) (*SQLiteStore, error) {
	db, err := sqliteutil.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("opening request store: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS requests (
		request_id TEXT PRIMARY KEY,
		resident_id TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		message_text TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_resident ON requests(resident_id);`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating request store schema: %w", err)
	}

	return &SQLiteStore{db: db, adminKey: adminKey}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Record inserts a new request, or updates the status of an existing one, so
// later query_past_solutions calls can see it. The orchestrator does not call
// it.
func (s *SQLiteStore) Record(ctx context.Context, residentID string, req PastRequest) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO requests (request_id, resident_id, category, status, created_at, message_text)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(request_id) DO UPDATE SET status = excluded.status`,
		req.RequestID, residentID, req.Category, req.Status, req.CreatedAt, req.MessageText)
	if err != nil {
		return fmt.Errorf("recording request %q: %w", req.RequestID, err)
	}
	return nil
}

// ListByResident returns every request recorded for residentID, most recent
// first.
func (s *SQLiteStore) ListByResident(ctx context.Context, residentID string) ([]PastRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT request_id, category, status, created_at, message_text
FROM requests WHERE resident_id = ? ORDER BY created_at DESC`, residentID)
	if err != nil {
		return nil, fmt.Errorf("listing requests for resident %q: %w", residentID, err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

// ListAll returns every recorded request, gated on adminKey matching the
// store's configured key.
func (s *SQLiteStore) ListAll(ctx context.Context, adminKey string) ([]PastRequest, error) {
	if subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.adminKey)) != 1 {
		return nil, ErrUnauthorized
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT request_id, category, status, created_at, message_text
FROM requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing all requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func scanRequests(rows *sql.Rows) ([]PastRequest, error) {
	var out []PastRequest
	for rows.Next() {
		var r PastRequest
		if err := rows.Scan(&r.RequestID, &r.Category, &r.Status, &r.CreatedAt, &r.MessageText); err != nil {
			return nil, fmt.Errorf("scanning request row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
