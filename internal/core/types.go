package core

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/ContentExtract/internal/extract"
	"github.com/JonMunkholm/ContentExtract/internal/transform"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Request-level failures. Callers match them with errors.Is.
var (
	// ErrMissingInput means a required file was not supplied.
	ErrMissingInput = errors.New("no file provided")

	// ErrUnsupportedFileType means the upload is not csv, xls or xlsx.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrDecode means the file had a supported type but could not be read.
	ErrDecode = errors.New("could not decode file")

	// ErrUnknownProfile is returned for a profile name that is not registered.
	ErrUnknownProfile = extract.ErrUnknownProfile
)

// Upload is one named file as received from a client.
type Upload struct {
	Name string
	Data []byte
}

// Mode selects how a run combines its uploads.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeJoin   Mode = "join"
)

// RunRequest describes one extract run.
type RunRequest struct {
	Mode    Mode
	Profile string // empty selects the configured default

	// Files holds one upload for ModeSingle, or reference then content for ModeJoin.
	Files []Upload
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	ID        string
	Mode      Mode
	Profile   string
	FileNames []string
	Table     transform.Table
	Stats     transform.Stats
	Duration  time.Duration
}

// RunRecord is the metadata kept in run history. It never holds row data.
type RunRecord struct {
	ID         string         `json:"id"`
	Mode       Mode           `json:"mode"`
	Profile    string         `json:"profile"`
	FileNames  []string       `json:"file_names"`
	RowsIn     int            `json:"rows_in"`
	RowsOut    int            `json:"rows_out"`
	Misses     map[string]int `json:"misses"`
	DurationMs int64          `json:"duration_ms"`
	Status     string         `json:"status"` // "ok" or "failed"
	Error      string         `json:"error,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Run statuses stored in history.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)
