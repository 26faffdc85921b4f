package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/JonMunkholm/ContentExtract/internal/logging"
	"github.com/JonMunkholm/ContentExtract/internal/metrics"
	"github.com/JonMunkholm/ContentExtract/internal/transform"
	"github.com/google/go-cmp/cmp"
)

const contentCSV = "StaticContentID,PageTitle,Content\n" +
	"1,Home,\"<title>Welcome</title><style>--header-border-bottom: rgba(255, 0, 16, 1);</style>\"\n" +
	"2,Other,\"<title>Second</title>\"\n" +
	"3,Third,plain text\n"

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{Workers: 2, MaxConcurrent: 2, MaxWait: time.Second}, opts...)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestNewService_UnknownDefaultProfile(t *testing.T) {
	_, err := NewService(ServiceConfig{DefaultProfile: "does-not-exist"})
	if !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("NewService() error = %v, want ErrUnknownProfile", err)
	}
}

func TestService_Extract(t *testing.T) {
	history := NewMemoryHistory(10)
	svc := newTestService(t, WithHistory(history), WithMetrics(metrics.New()))

	res, err := svc.Extract(context.Background(), "", Upload{Name: "pages.csv", Data: []byte(contentCSV)})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if res.Profile != "ml-n3" || res.Mode != ModeSingle {
		t.Errorf("result = %s/%s, want ml-n3/single", res.Profile, res.Mode)
	}
	if res.ID == "" {
		t.Error("result has no run ID")
	}
	if res.Stats.RowsIn != 3 || res.Stats.RowsOut != 3 {
		t.Errorf("stats = %+v, want 3 in / 3 out", res.Stats)
	}

	first := res.Table.Rows[0]
	want := map[string]string{
		transform.ColOutPageTitle:    "Home",
		transform.ColStaticContentID: "1",
		"PageTitle":                  "Welcome",
		"headerBorderBottom":         "#ff0010",
		"headerBackgroundColor":      "#000000",
		"promocode":                  "",
	}
	for col, v := range want {
		if first[col] != v {
			t.Errorf("row 0 %s = %q, want %q", col, first[col], v)
		}
	}
	if res.Stats.Misses["PageTitle"] != 1 {
		t.Errorf("PageTitle misses = %d, want 1", res.Stats.Misses["PageTitle"])
	}

	recs, err := svc.History(context.Background(), 5)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("History() returned %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.ID != res.ID || rec.Status != StatusOK || rec.RowsOut != 3 {
		t.Errorf("history record = %+v", rec)
	}
	if diff := cmp.Diff([]string{"pages.csv"}, rec.FileNames); diff != "" {
		t.Errorf("FileNames mismatch (-want +got):\n%s", diff)
	}
}

func TestService_ExtractXLSX(t *testing.T) {
	svc := newTestService(t)
	data := xlsxFixture(t, [][]any{
		{"StaticContentID", "PageTitle", "Content"},
		{5, "Sheet page", `<meta name="description" content="From a workbook">`},
	})

	res, err := svc.Extract(context.Background(), "ml-n3", Upload{Name: "pages.xlsx", Data: data})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := res.Table.Rows[0]["metaDescription"]; got != "From a workbook" {
		t.Errorf("metaDescription = %q, want %q", got, "From a workbook")
	}
}

func TestService_Join(t *testing.T) {
	svc := newTestService(t)

	reference := Upload{Name: "ref.xlsx", Data: xlsxFixture(t, [][]any{
		{"StaticContentID", "Keep / Delete"},
		{1, "Keep - New"},
		{2, "Delete"},
	})}
	content := Upload{Name: "content.csv", Data: []byte(
		"StaticContentID,PageTitle,Content\n" +
			"1.0,A,<title>x</title>\n" +
			"2,B,<title>y</title>\n")}

	res, err := svc.Join(context.Background(), "", reference, content)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if res.Stats.RowsIn != 2 || res.Stats.RowsOut != 1 {
		t.Errorf("stats = %+v, want 2 in / 1 out", res.Stats)
	}
	if len(res.Table.Rows) != 1 || res.Table.Rows[0]["PageTitle"] != "x" {
		t.Errorf("rows = %+v, want only the row for ID 1", res.Table.Rows)
	}
	if diff := cmp.Diff([]string{"ref.xlsx", "content.csv"}, res.FileNames); diff != "" {
		t.Errorf("FileNames mismatch (-want +got):\n%s", diff)
	}
}

func TestService_RunErrors(t *testing.T) {
	history := NewMemoryHistory(10)
	svc := newTestService(t, WithHistory(history))
	csvFile := Upload{Name: "pages.csv", Data: []byte(contentCSV)}

	tests := []struct {
		name       string
		req        RunRequest
		wantErr    error
		wantRecord bool
	}{
		{
			name:    "no files",
			req:     RunRequest{Mode: ModeSingle},
			wantErr: ErrMissingInput,
		},
		{
			name:    "join with one file",
			req:     RunRequest{Mode: ModeJoin, Files: []Upload{csvFile}},
			wantErr: ErrMissingInput,
		},
		{
			name:    "unknown profile",
			req:     RunRequest{Mode: ModeSingle, Profile: "nope", Files: []Upload{csvFile}},
			wantErr: ErrUnknownProfile,
		},
		{
			name:       "unsupported file",
			req:        RunRequest{Mode: ModeSingle, Files: []Upload{{Name: "a.pdf", Data: []byte("%PDF")}}},
			wantErr:    ErrUnsupportedFileType,
			wantRecord: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := history.Recent(context.Background(), 100)

			_, err := svc.Run(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if !IsClientError(err) {
				t.Errorf("IsClientError(%v) = false", err)
			}

			after, _ := history.Recent(context.Background(), 100)
			recorded := len(after) > len(before)
			if recorded != tt.wantRecord {
				t.Errorf("recorded = %v, want %v", recorded, tt.wantRecord)
			}
			if recorded && after[0].Status != StatusFailed {
				t.Errorf("status = %q, want %q", after[0].Status, StatusFailed)
			}
		})
	}
}

func TestService_RunCancelled(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Extract(ctx, "", Upload{Name: "pages.csv", Data: []byte(contentCSV)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract() error = %v, want context.Canceled", err)
	}
	if status := svc.LimiterStatus(); status.Active != 0 {
		t.Errorf("active runs = %d after cancel, want 0", status.Active)
	}
}

func TestService_HistoryDisabled(t *testing.T) {
	svc := newTestService(t)
	if svc.HistoryEnabled() {
		t.Error("HistoryEnabled() = true without a store")
	}
	if _, err := svc.History(context.Background(), 10); !errors.Is(err, ErrHistoryDisabled) {
		t.Errorf("History() error = %v, want ErrHistoryDisabled", err)
	}
}

func TestService_Profiles(t *testing.T) {
	svc := newTestService(t)

	var names []string
	var defaults int
	for _, p := range svc.Profiles() {
		names = append(names, p.Name)
		if p.Default {
			defaults++
			if p.Name != svc.DefaultProfile() {
				t.Errorf("default flag on %q, want %q", p.Name, svc.DefaultProfile())
			}
		}
		if len(p.Fields) == 0 {
			t.Errorf("profile %q has no fields", p.Name)
		}
	}
	if defaults != 1 {
		t.Errorf("%d profiles marked default, want 1", defaults)
	}

	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	for _, want := range []string{"ml-n3", "modal-body"} {
		if !found[want] {
			t.Errorf("profile %q not listed in %v", want, names)
		}
	}
}

func TestService_LimiterStatus(t *testing.T) {
	svc := newTestService(t)
	status := svc.LimiterStatus()
	if status.MaxConcurrent != 2 || status.Active != 0 || status.Available != 2 {
		t.Errorf("LimiterStatus() = %+v", status)
	}

	if _, err := svc.Extract(context.Background(), "", Upload{Name: "pages.csv", Data: []byte(contentCSV)}); err != nil {
		t.Fatal(err)
	}
	if got := svc.LimiterStatus().TotalRuns; got != 1 {
		t.Errorf("TotalRuns = %d, want 1", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.WaitForRuns(ctx); err != nil {
		t.Errorf("WaitForRuns() error = %v", err)
	}
}

func TestFailureLevel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want slog.Level
	}{
		{name: "decode", err: fmt.Errorf("%w: a.csv: bare quote", ErrDecode), want: slog.LevelWarn},
		{name: "unsupported", err: fmt.Errorf("%w: %q", ErrUnsupportedFileType, "pdf"), want: slog.LevelWarn},
		{name: "missing input", err: ErrMissingInput, want: slog.LevelWarn},
		{name: "unknown profile", err: ErrUnknownProfile, want: slog.LevelWarn},
		{name: "client went away", err: fmt.Errorf("transform cancelled: %w", context.Canceled), want: slog.LevelWarn},
		{name: "run timeout", err: fmt.Errorf("transform cancelled: %w", context.DeadlineExceeded), want: slog.LevelError},
		{name: "panic", err: errors.New("internal error: boom"), want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failureLevel(tt.err); got != tt.want {
				t.Errorf("failureLevel(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestService_RunFailedLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "debug", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	svc := newTestService(t)
	if _, err := svc.Extract(context.Background(), "", Upload{Name: "a.pdf", Data: []byte("%PDF")}); err == nil {
		t.Fatal("Extract() error = nil, want unsupported file type")
	}

	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry struct {
			Level string `json:"level"`
			Msg   string `json:"msg"`
		}
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		if entry.Msg == "run failed" {
			found = true
			if entry.Level != "WARN" {
				t.Errorf("run failed level = %s, want WARN", entry.Level)
			}
		}
	}
	if !found {
		t.Errorf("no run failed entry in logs:\n%s", buf.String())
	}
}
