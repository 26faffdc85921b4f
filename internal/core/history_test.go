package core

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execRecorder is a DBTX that records Exec calls and fails everything else.
type execRecorder struct {
	sql  []string
	args [][]any
	err  error
}

func (r *execRecorder) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	r.sql = append(r.sql, sql)
	r.args = append(r.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func (r *execRecorder) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (r *execRecorder) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func TestPgHistory_Record(t *testing.T) {
	db := &execRecorder{}
	h := NewPgHistory(db)

	id := uuid.NewString()
	rec := RunRecord{
		ID:         id,
		Mode:       ModeJoin,
		Profile:    "ml-n3",
		FileNames:  []string{"a.csv", "b.xlsx"},
		RowsIn:     10,
		RowsOut:    4,
		Misses:     map[string]int{"promocode": 4},
		DurationMs: 12,
		Status:     StatusOK,
	}

	if err := h.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if len(db.sql) != 1 || !strings.Contains(db.sql[0], "INSERT INTO extract_runs") {
		t.Fatalf("unexpected SQL: %v", db.sql)
	}
	args := db.args[0]
	if len(args) != 13 {
		t.Fatalf("got %d args, want 13", len(args))
	}
	if got := PgUUIDToString(args[0].(pgtype.UUID)); got != id {
		t.Errorf("id arg = %q, want %q", got, id)
	}
	if got := string(args[6].([]byte)); got != `{"promocode":4}` {
		t.Errorf("misses arg = %s", got)
	}
	if args[9].(pgtype.Text).Valid {
		t.Error("empty error should be stored as NULL")
	}
	if !args[12].(pgtype.Timestamptz).Valid {
		t.Error("created_at should default to now")
	}
}

func TestPgHistory_RecordError(t *testing.T) {
	db := &execRecorder{err: errors.New("dial tcp: connection refused")}
	h := NewPgHistory(db)

	err := h.Record(context.Background(), RunRecord{ID: uuid.NewString()})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Record() error = %v, want wrapped connection error", err)
	}
}

func TestPgHistory_EnsureSchema(t *testing.T) {
	db := &execRecorder{}
	if err := NewPgHistory(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if !strings.Contains(db.sql[0], "CREATE TABLE IF NOT EXISTS extract_runs") {
		t.Errorf("unexpected schema SQL: %s", db.sql[0])
	}
}

// TestPgHistory_Integration runs against a real database when
// TEST_DATABASE_URL is set.
func TestPgHistory_Integration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	h := NewPgHistory(tx)
	if err := h.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	want := RunRecord{
		ID:         uuid.NewString(),
		Mode:       ModeSingle,
		Profile:    "ml-n3",
		FileNames:  []string{"pages.csv"},
		RowsIn:     3,
		RowsOut:    3,
		Misses:     map[string]int{"imgAlt": 1},
		DurationMs: 5,
		Status:     StatusOK,
		IPAddress:  "10.0.0.1",
		CreatedAt:  time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond),
	}
	if err := h.Record(ctx, want); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := h.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent() returned %d records", len(got))
	}
	got[0].CreatedAt = got[0].CreatedAt.UTC()
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("Recent() mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryHistory(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := h.Record(ctx, RunRecord{RowsIn: i}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := h.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}

	var rowsIn []int
	for _, r := range got {
		rowsIn = append(rowsIn, r.RowsIn)
		if r.CreatedAt.IsZero() {
			t.Error("CreatedAt not set")
		}
	}
	if diff := cmp.Diff([]int{4, 3, 2}, rowsIn); diff != "" {
		t.Errorf("Recent() order mismatch (-want +got):\n%s", diff)
	}

	got, _ = h.Recent(ctx, 1)
	if len(got) != 1 || got[0].RowsIn != 4 {
		t.Errorf("Recent(1) = %+v, want newest run", got)
	}
}
