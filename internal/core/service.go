package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/contacts/internal/config"
	"github.com/JonMunkholm/contacts/internal/importer"
	"github.com/JonMunkholm/contacts/internal/logging"
	"github.com/JonMunkholm/contacts/internal/store"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned by transports when a request carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrRunNotFound is returned for unknown or expired run IDs.
	ErrRunNotFound = errors.New("import run not found")

	// ErrRunFailed is returned when saving a run that produced no result.
	ErrRunFailed = errors.New("import run failed")

	// ErrInvalidInput is returned by transports for unreadable request bodies.
	ErrInvalidInput = errors.New("invalid request")

	// ErrStoreDisabled is returned when no contact store is configured.
	ErrStoreDisabled = errors.New("contact store not configured")
)

// ContactStore persists import results. *store.Store implements it.
type ContactStore interface {
	SaveImport(ctx context.Context, contacts []importer.Contact, tags []string) (*store.SaveResult, error)
	ActiveContacts(ctx context.Context, emails []string) ([]store.StoredContact, error)
	Ping(ctx context.Context) error
}

// RunStatus is the final state of an import run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ImportRun records one import.
type ImportRun struct {
	ID         string           `json:"id"`
	FileName   string           `json:"fileName"`
	Status     RunStatus        `json:"status"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	DurationMS int64            `json:"durationMs"`
	Size       int64            `json:"size"`
	Rows       int              `json:"rows"`
	ClientIP   string           `json:"clientIp,omitempty"`
	UserAgent  string           `json:"userAgent,omitempty"`
	Error      *UserMessage     `json:"error,omitempty"`
	FailedLine int              `json:"failedLine,omitempty"`
	Result     *importer.Result `json:"result,omitempty"`
}

// RunSummary is the list view of an ImportRun.
type RunSummary struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	Status     RunStatus `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	Rows       int       `json:"rows"`
	Contacts   int       `json:"contacts"`
	Duplicated int       `json:"duplicated"`
	Invalid    int       `json:"invalid"`
	Tags       int       `json:"tags"`
}

// Summary condenses the run for listings.
func (r *ImportRun) Summary() RunSummary {
	s := RunSummary{
		ID:        r.ID,
		FileName:  r.FileName,
		Status:    r.Status,
		StartedAt: r.StartedAt,
		Rows:      r.Rows,
	}
	if r.Result != nil {
		s.Contacts = len(r.Result.Contacts)
		s.Duplicated = len(r.Result.Duplicated)
		s.Invalid = len(r.Result.Invalid)
		s.Tags = len(r.Result.Tags)
	}
	return s
}

// Service runs imports and keeps their results for a while.
type Service struct {
	cfg     config.ImportConfig
	store   ContactStore
	limiter *Limiter
	metrics *importMetrics
	now     func() time.Time

	mu   sync.RWMutex
	runs map[string]*ImportRun
}

// NewService creates a Service. st may be nil, in which case saving is
// disabled. Metrics are registered with reg when it is non-nil.
func NewService(cfg *config.Config, st ContactStore, reg prometheus.Registerer) (*Service, error) {
	limiter := NewLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)

	metrics, err := newImportMetrics(reg, limiter)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	return &Service{
		cfg:     cfg.Import,
		store:   st,
		limiter: limiter,
		metrics: metrics,
		now:     time.Now,
		runs:    make(map[string]*ImportRun),
	}, nil
}

// Import reads input to the end and records the run. size is the input
// length in bytes when known, or zero.
//
// A failed run is still recorded and returned alongside the error, so the
// caller can report its ID. Errors from waiting for a slot or from the size
// check return no run.
func (s *Service) Import(ctx context.Context, fileName string, input any, size int64) (*ImportRun, error) {
	if size <= 0 {
		size = knownSize(input)
	}
	if s.cfg.MaxFileSize > 0 && size > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d: %w", fileName, size, s.cfg.MaxFileSize, ErrFileTooLarge)
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	run := &ImportRun{
		ID:        uuid.NewString(),
		FileName:  fileName,
		StartedAt: s.now(),
		Size:      size,
		ClientIP:  ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	}
	logger := logging.WithFields(ctx, "run_id", run.ID, "file", fileName)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	counter := &rowCounter{next: s.metrics}
	im := importer.New(
		importer.WithLogger(logger),
		importer.WithObserver(counter),
		importer.WithMaxLineBytes(s.cfg.MaxLineBytes),
		importer.WithContextCheckInterval(s.cfg.ContextCheckInterval),
	)

	start := time.Now()
	res, err := im.Run(ctx, input)
	took := time.Since(start)

	run.FinishedAt = run.StartedAt.Add(took)
	run.DurationMS = took.Milliseconds()
	run.Rows = counter.rows
	s.metrics.observeRun(took, err)

	if err != nil {
		msg := MapError(err)
		run.Status = RunFailed
		run.Error = &msg
		var se *importer.StreamError
		if errors.As(err, &se) {
			run.FailedLine = se.Line
		}
		s.remember(run)

		logger.Warn("import failed", "error", err, "code", msg.Code, "rows", run.Rows)
		return run, fmt.Errorf("import %s: %w", fileName, err)
	}

	run.Status = RunSucceeded
	run.Result = res
	s.remember(run)

	logger.Info("import completed",
		"rows", run.Rows,
		"contacts", len(res.Contacts),
		"duplicated", len(res.Duplicated),
		"invalid", len(res.Invalid),
		"tags", len(res.Tags),
		"duration_ms", run.DurationMS,
	)
	return run, nil
}

// GetRun returns a recorded run.
func (s *Service) GetRun(id string) (*ImportRun, error) {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()

	if !ok || s.expired(run) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return run, nil
}

// ListRuns returns summaries of the retained runs, newest first.
func (s *Service) ListRuns() []RunSummary {
	s.mu.RLock()
	summaries := make([]RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		if !s.expired(run) {
			summaries = append(summaries, run.Summary())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(summaries, func(a, b RunSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return summaries
}

// StoreRun saves the contacts and tags of a successful run.
func (s *Service) StoreRun(ctx context.Context, id string) (*store.SaveResult, error) {
	run, err := s.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run.Result == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrRunFailed)
	}

	return s.Store(ctx, run.Result.Contacts, run.Result.Tags)
}

// Store saves contacts and tags. Existing tags and contacts are left as
// they are; links between them are added.
func (s *Service) Store(ctx context.Context, contacts []importer.Contact, tags []string) (*store.SaveResult, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}

	res, err := s.store.SaveImport(ctx, contacts, tags)
	if err != nil {
		return nil, fmt.Errorf("save contacts: %w", err)
	}
	s.metrics.observeSave(res.ContactsInserted, res.TagsInserted, res.LinksInserted)

	logging.FromContext(ctx).Info("contacts saved",
		"contacts", len(contacts),
		"contacts_inserted", res.ContactsInserted,
		"tags_inserted", res.TagsInserted,
		"links_inserted", res.LinksInserted,
	)
	return res, nil
}

// ActiveContacts returns the stored, active contacts among emails.
func (s *Service) ActiveContacts(ctx context.Context, emails []string) ([]store.StoredContact, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.ActiveContacts(ctx, emails)
}

// Ping checks the contact store. It returns ErrStoreDisabled when there is none.
func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return ErrStoreDisabled
	}
	return s.store.Ping(ctx)
}

// UploadLimiterStatus reports import slot usage.
func (s *Service) UploadLimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until running imports finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

// remember stores run and drops runs past retention.
func (s *Service) remember(run *ImportRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.runs {
		if s.expired(r) {
			delete(s.runs, id)
		}
	}
	s.runs[run.ID] = run
}

func (s *Service) expired(run *ImportRun) bool {
	return s.cfg.RunRetention > 0 && s.now().Sub(run.FinishedAt) > s.cfg.RunRetention
}

// rowCounter counts rows for the run record and forwards to next.
type rowCounter struct {
	rows int
	next importer.Observer
}

func (c *rowCounter) ObserveRow(o importer.Outcome) {
	c.rows++
	c.next.ObserveRow(o)
}

func knownSize(input any) int64 {
	switch v := input.(type) {
	case string:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	case interface{ Size() int64 }:
		return v.Size()
	case interface{ Len() int }:
		return int64(v.Len())
	}
	return 0
}
