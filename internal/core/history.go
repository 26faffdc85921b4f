package core

// history.go stores run metadata. Row data is never persisted.
//
// PgHistory writes to the extract_runs table through any DBTX. MemoryHistory
// keeps the most recent runs in process and backs tests and the CLI.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrHistoryDisabled is returned by the service when no store is configured.
var ErrHistoryDisabled = errors.New("history disabled")

// DefaultHistoryLimit caps Recent when the caller passes a non-positive limit.
const DefaultHistoryLimit = 50

// HistoryStore records completed runs.
type HistoryStore interface {
	Record(ctx context.Context, rec RunRecord) error
	Recent(ctx context.Context, limit int) ([]RunRecord, error)
}

const historySchema = `
CREATE TABLE IF NOT EXISTS extract_runs (
	id          UUID PRIMARY KEY,
	mode        TEXT NOT NULL,
	profile     TEXT NOT NULL,
	file_names  TEXT[] NOT NULL,
	rows_in     INTEGER NOT NULL,
	rows_out    INTEGER NOT NULL,
	misses      JSONB NOT NULL DEFAULT '{}',
	duration_ms BIGINT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT,
	ip_address  TEXT,
	user_agent  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS extract_runs_created_at_idx ON extract_runs (created_at DESC);
`

const insertRunSQL = `
INSERT INTO extract_runs
	(id, mode, profile, file_names, rows_in, rows_out, misses, duration_ms, status, error, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const recentRunsSQL = `
SELECT id, mode, profile, file_names, rows_in, rows_out, misses, duration_ms, status, error, ip_address, user_agent, created_at
FROM extract_runs
ORDER BY created_at DESC
LIMIT $1`

// PgHistory is a HistoryStore on PostgreSQL.
type PgHistory struct {
	db DBTX
}

// NewPgHistory creates a store over db (a *pgxpool.Pool in production).
func NewPgHistory(db DBTX) *PgHistory {
	return &PgHistory{db: db}
}

// EnsureSchema creates the extract_runs table if it does not exist.
func (h *PgHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("create extract_runs: %w", err)
	}
	return nil
}

// Record inserts one run.
func (h *PgHistory) Record(ctx context.Context, rec RunRecord) error {
	misses, err := json.Marshal(rec.Misses)
	if err != nil {
		return fmt.Errorf("encode misses: %w", err)
	}
	if rec.FileNames == nil {
		rec.FileNames = []string{}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err = h.db.Exec(ctx, insertRunSQL,
		ToPgUUID(rec.ID),
		string(rec.Mode),
		rec.Profile,
		rec.FileNames,
		rec.RowsIn,
		rec.RowsOut,
		misses,
		rec.DurationMs,
		rec.Status,
		ToPgText(rec.Error),
		ToPgText(rec.IPAddress),
		ToPgText(rec.UserAgent),
		pgtype.Timestamptz{Time: rec.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *PgHistory) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := h.db.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanRunRecord)
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	return records, nil
}

func scanRunRecord(row pgx.CollectableRow) (RunRecord, error) {
	var (
		rec       RunRecord
		id        pgtype.UUID
		mode      string
		misses    []byte
		errText   pgtype.Text
		ip        pgtype.Text
		ua        pgtype.Text
		createdAt pgtype.Timestamptz
	)

	err := row.Scan(&id, &mode, &rec.Profile, &rec.FileNames, &rec.RowsIn, &rec.RowsOut,
		&misses, &rec.DurationMs, &rec.Status, &errText, &ip, &ua, &createdAt)
	if err != nil {
		return RunRecord{}, err
	}

	if len(misses) > 0 {
		if err := json.Unmarshal(misses, &rec.Misses); err != nil {
			return RunRecord{}, fmt.Errorf("decode misses: %w", err)
		}
	}

	rec.ID = PgUUIDToString(id)
	rec.Mode = Mode(mode)
	rec.Error = FromPgText(errText)
	rec.IPAddress = FromPgText(ip)
	rec.UserAgent = FromPgText(ua)
	rec.CreatedAt = createdAt.Time
	return rec, nil
}

// MemoryHistory keeps the last N runs in memory.
type MemoryHistory struct {
	mu      sync.Mutex
	records []RunRecord
	max     int
}

// NewMemoryHistory creates a store that keeps at most max runs.
func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = DefaultHistoryLimit
	}
	return &MemoryHistory{max: max}
}

// Record appends rec, evicting the oldest run when full.
func (h *MemoryHistory) Record(_ context.Context, rec RunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	if len(h.records) > h.max {
		h.records = h.records[len(h.records)-h.max:]
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n := min(limit, len(h.records))
	out := make([]RunRecord, 0, n)
	for i := len(h.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}
