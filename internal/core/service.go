package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/ContentExtract/internal/extract"
	"github.com/JonMunkholm/ContentExtract/internal/logging"
	"github.com/JonMunkholm/ContentExtract/internal/metrics"
	"github.com/JonMunkholm/ContentExtract/internal/transform"
	"github.com/google/uuid"
)

// DefaultRunTimeout bounds one run when ServiceConfig.RunTimeout is zero.
const DefaultRunTimeout = 2 * time.Minute

// ServiceConfig holds the settings the service needs from the application config.
type ServiceConfig struct {
	DefaultProfile string
	Workers        int
	MaxConcurrent  int
	MaxWait        time.Duration
	RunTimeout     time.Duration
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithHistory records every run in store.
func WithHistory(store HistoryStore) Option {
	return func(s *Service) { s.history = store }
}

// WithMetrics reports runs to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service runs extract jobs: decode the uploads, transform the rows and
// report the result. It is safe for concurrent use.
type Service struct {
	cfg     ServiceConfig
	limiter *RunLimiter
	history HistoryStore
	metrics *metrics.Metrics

	mu         sync.RWMutex
	extractors map[string]*extract.Extractor
}

// NewService creates a Service. The default profile must be registered.
func NewService(cfg ServiceConfig, opts ...Option) (*Service, error) {
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = extract.DefaultProfile
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}

	s := &Service{
		cfg:        cfg,
		limiter:    NewRunLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		extractors: make(map[string]*extract.Extractor),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.extractor(cfg.DefaultProfile); err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}
	return s, nil
}

// DefaultProfile returns the profile used when a request names none.
func (s *Service) DefaultProfile() string {
	return s.cfg.DefaultProfile
}

// extractor returns the compiled extractor for a profile, compiling it on
// first use.
func (s *Service) extractor(name string) (*extract.Extractor, error) {
	s.mu.RLock()
	ex, ok := s.extractors[name]
	s.mu.RUnlock()
	if ok {
		return ex, nil
	}

	p, err := extract.Lookup(name)
	if err != nil {
		return nil, err
	}
	ex, err = extract.New(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.extractors[name] = ex
	s.mu.Unlock()
	return ex, nil
}

// Extract runs single-file mode.
func (s *Service) Extract(ctx context.Context, profile string, file Upload) (*RunResult, error) {
	return s.Run(ctx, RunRequest{Mode: ModeSingle, Profile: profile, Files: []Upload{file}})
}

// Join runs join mode: reference selects which content rows are kept.
func (s *Service) Join(ctx context.Context, profile string, reference, content Upload) (*RunResult, error) {
	return s.Run(ctx, RunRequest{Mode: ModeJoin, Profile: profile, Files: []Upload{reference, content}})
}

// Run executes one extract run to completion.
//
// Returns ErrMissingInput, ErrUnknownProfile, ErrTooManyUploads,
// ErrUnsupportedFileType or ErrDecode (all wrapped), or a context error.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Profile == "" {
		req.Profile = s.cfg.DefaultProfile
	}
	if err := checkFiles(req); err != nil {
		return nil, err
	}
	req.Files = req.Files[:filesFor(req.Mode)]

	ex, err := s.extractor(req.Profile)
	if err != nil {
		return nil, err
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	id := uuid.NewString()
	log := logging.WithFields(ctx, "run_id", id, "mode", req.Mode, "profile", req.Profile)
	log.Debug("run started", "files", fileNames(req.Files))

	start := time.Now()
	s.metrics.RunStarted()

	res, err := s.execute(runCtx, ex, req)
	duration := time.Since(start)

	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	s.metrics.RunFinished(string(req.Mode), req.Profile, status, duration)
	s.record(ctx, id, req, res, duration, err)

	if err != nil {
		log.Log(ctx, failureLevel(err), "run failed", "error", err, "duration_ms", duration.Milliseconds())
		return nil, err
	}

	s.metrics.RecordRows(req.Profile, res.Stats.RowsIn, res.Stats.RowsOut, res.Stats.Misses)
	log.Info("run completed",
		"rows_in", res.Stats.RowsIn,
		"rows_out", res.Stats.RowsOut,
		"duration_ms", duration.Milliseconds(),
	)

	return &RunResult{
		ID:        id,
		Mode:      req.Mode,
		Profile:   req.Profile,
		FileNames: fileNames(req.Files),
		Table:     res.Table,
		Stats:     res.Stats,
		Duration:  duration,
	}, nil
}

// filesFor returns how many uploads a mode reads. Extra files are ignored.
func filesFor(mode Mode) int {
	if mode == ModeJoin {
		return 2
	}
	return 1
}

func checkFiles(req RunRequest) error {
	if req.Mode != ModeSingle && req.Mode != ModeJoin {
		return fmt.Errorf("unknown run mode %q", req.Mode)
	}

	want := filesFor(req.Mode)

	if len(req.Files) < want {
		return fmt.Errorf("%w: %s mode needs %d file(s), got %d", ErrMissingInput, req.Mode, want, len(req.Files))
	}
	for i, f := range req.Files[:want] {
		if f.Name == "" && len(f.Data) == 0 {
			return fmt.Errorf("%w: file %d is empty", ErrMissingInput, i+1)
		}
	}
	return nil
}

// execute decodes and transforms. A panic in a decoder becomes an error so
// the limiter slot and metrics are always settled.
func (s *Service) execute(ctx context.Context, ex *extract.Extractor, req RunRequest) (res transform.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("panic in run", "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	tables := make([]transform.Table, 0, len(req.Files))
	for _, f := range req.Files {
		s.metrics.ObserveUpload(len(f.Data))
		t, err := Decode(f)
		if err != nil {
			return transform.Result{}, err
		}
		tables = append(tables, t)
	}

	tr := transform.New(ex, transform.Options{Workers: s.cfg.Workers})
	if req.Mode == ModeJoin {
		return tr.Join(ctx, tables[0], tables[1], transform.DefaultJoinSpec())
	}
	return tr.Transform(ctx, tables[0])
}

// record writes run metadata to history. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, id string, req RunRequest, res transform.Result, d time.Duration, runErr error) {
	if s.history == nil {
		return
	}

	rec := RunRecord{
		ID:         id,
		Mode:       req.Mode,
		Profile:    req.Profile,
		FileNames:  fileNames(req.Files),
		RowsIn:     res.Stats.RowsIn,
		RowsOut:    res.Stats.RowsOut,
		Misses:     res.Stats.Misses,
		DurationMs: d.Milliseconds(),
		Status:     StatusOK,
		IPAddress:  IPAddressFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
		CreatedAt:  time.Now(),
	}
	if runErr != nil {
		rec.Status = StatusFailed
		rec.Error = runErr.Error()
	}

	// The request context may already be done; history should still land.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.history.Record(hctx, rec); err != nil {
		logging.FromContext(ctx).Error("record run history", "run_id", id, "error", err)
	}
}

// History returns recent runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]RunRecord, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Recent(ctx, limit)
}

// HistoryEnabled reports whether runs are being recorded.
func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

// LimiterStatus returns the run limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight runs finish or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ProfileInfo describes a registered profile.
type ProfileInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Merge       string   `json:"merge"`
	Fields      []string `json:"fields"`
	Default     bool     `json:"default"`
}

// Profiles lists the registered profiles, sorted by name.
func (s *Service) Profiles() []ProfileInfo {
	profiles := extract.Profiles()
	out := make([]ProfileInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, ProfileInfo{
			Name:        p.Name,
			Description: p.Description,
			Merge:       string(p.Merge),
			Fields:      p.FieldNames(),
			Default:     p.Name == s.cfg.DefaultProfile,
		})
	}
	return out
}

// IsClientError reports whether err was caused by the request rather than
// the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingInput) ||
		errors.Is(err, ErrUnsupportedFileType) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrUnknownProfile)
}

// failureLevel is Warn for failures the caller caused and Error otherwise.
func failureLevel(err error) slog.Level {
	if IsClientError(err) || errors.Is(err, context.Canceled) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

func fileNames(files []Upload) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
