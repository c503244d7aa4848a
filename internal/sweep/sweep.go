// Package sweep runs the periodic expiry job: expire lapsed invitations,
// repair interrupted settlements, then refresh every exhausted rotation batch.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/logger"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Lifecycle is the part of assignment.Manager the sweep drives.
type Lifecycle interface {
	ExpireStale(ctx context.Context, now time.Time) (*assignment.ExpireResult, error)
	RepairSettlements(ctx context.Context) (*assignment.RepairResult, error)
	RefreshableBatches(ctx context.Context, limit int) ([]types.Batch, error)
	RefreshExhausted(ctx context.Context, batchID uuid.UUID) (*assignment.RefreshResult, error)
}

var _ Lifecycle = (*assignment.Manager)(nil)

// Config bounds a sweep run.
type Config struct {
	Concurrency  int           // batches refreshed in parallel
	BatchTimeout time.Duration // per-batch refresh deadline
	RefreshLimit int           // leftover exhausted batches picked up per run
	LockKey      string
	LockTTL      time.Duration
}

// DefaultConfig returns the production sweep settings.
func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		BatchTimeout: 10 * time.Second,
		RefreshLimit: 100,
		LockKey:      DefaultLockKey,
		LockTTL:      2 * time.Minute,
	}
}

// Refresh records one batch replaced during a run.
type Refresh struct {
	BatchID      uuid.UUID `json:"batch_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	NewBatchID   uuid.UUID `json:"new_batch_id"`
	FallbackUsed bool      `json:"fallback_used"`
}

// Failure records one batch whose refresh failed.
type Failure struct {
	BatchID   uuid.UUID `json:"batch_id"`
	ProjectID uuid.UUID `json:"project_id,omitempty"`
	Error     string    `json:"error"`
}

// Report summarizes one sweep run.
type Report struct {
	Now      time.Time     `json:"now"`
	Duration time.Duration `json:"duration"`

	// LockBusy is set when another sweep held the lock and this run did nothing.
	LockBusy bool `json:"lock_busy"`

	Expired          int   `json:"expired"`
	ProjectsAssigned int64 `json:"projects_assigned"`
	Invalidated      int   `json:"invalidated"`
	Examined         int   `json:"examined"`

	Refreshed []Refresh `json:"refreshed"`
	Failures  []Failure `json:"failures"`

	// RepairError is set when the settlement repair step failed; refreshes still ran.
	RepairError string `json:"repair_error,omitempty"`
}

// Sweeper runs sweep passes against a Lifecycle.
type Sweeper struct {
	lifecycle Lifecycle
	cfg       Config
	locker    Locker
	log       *logrus.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLocker sets the cross-process lock. Defaults to NoopLocker.
func WithLocker(l Locker) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLogger sets the logger. Defaults to the sweep logger.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Sweeper) { s.log = l }
}

// New creates a Sweeper. Zero config fields take their defaults.
func New(lifecycle Lifecycle, cfg Config, opts ...Option) *Sweeper {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	if cfg.RefreshLimit <= 0 {
		cfg.RefreshLimit = def.RefreshLimit
	}
	if cfg.LockKey == "" {
		cfg.LockKey = def.LockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}

	s := &Sweeper{
		lifecycle: lifecycle,
		cfg:       cfg,
		locker:    NoopLocker{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.GetSweepLogger()
	}
	return s
}

// Run performs one sweep pass at now. Only a failure to expire candidates is
// returned as an error; each batch refresh is isolated and reported.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (*Report, error) {
	start := time.Now()
	report := &Report{Now: now, Refreshed: []Refresh{}, Failures: []Failure{}}

	release, ok, err := s.locker.Acquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
	if err != nil {
		// The store transitions are conditional, so an unlocked run is safe; it may only duplicate work.
		s.log.WithError(err).Warn("sweep lock unavailable, running without it")
	} else if !ok {
		report.LockBusy = true
		s.log.Info("another sweep holds the lock, skipping")
		return report, nil
	} else {
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.WithError(err).Warn("failed to release sweep lock")
			}
		}()
	}

	expired, err := s.lifecycle.ExpireStale(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("expire stale candidates: %w", err)
	}
	report.Expired = expired.ExpiredCount

	projectOf := make(map[uuid.UUID]uuid.UUID)
	for _, c := range expired.Candidates {
		projectOf[c.BatchID] = c.ProjectID
	}

	if repaired, err := s.lifecycle.RepairSettlements(ctx); err != nil {
		report.RepairError = err.Error()
		s.log.WithError(err).Error("failed to repair settlements")
	} else {
		report.ProjectsAssigned = repaired.ProjectsAssigned
		report.Invalidated = len(repaired.Invalidated)
	}

	batchIDs := append([]uuid.UUID{}, expired.BatchIDs...)
	leftover, err := s.lifecycle.RefreshableBatches(ctx, s.cfg.RefreshLimit)
	if err != nil {
		s.log.WithError(err).Error("failed to list refreshable batches")
	}
	for _, b := range leftover {
		if _, seen := projectOf[b.ID]; !seen {
			batchIDs = append(batchIDs, b.ID)
		}
		projectOf[b.ID] = b.ProjectID
	}
	report.Examined = len(batchIDs)

	s.refreshAll(ctx, batchIDs, projectOf, report)

	report.Duration = time.Since(start)
	s.log.WithFields(logrus.Fields{
		"expired":           report.Expired,
		"projects_assigned": report.ProjectsAssigned,
		"invalidated":       report.Invalidated,
		"examined":          report.Examined,
		"refreshed":         len(report.Refreshed),
		"failures":          len(report.Failures),
		"duration":          report.Duration.String(),
	}).Info("sweep complete")
	return report, nil
}

func (s *Sweeper) refreshAll(ctx context.Context, batchIDs []uuid.UUID, projectOf map[uuid.UUID]uuid.UUID, report *Report) {
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)

	for _, batchID := range batchIDs {
		projectID := projectOf[batchID]
		g.Go(func() error {
			res, err := s.refreshOne(ctx, batchID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, Failure{BatchID: batchID, ProjectID: projectID, Error: err.Error()})
				s.log.WithError(err).WithFields(logrus.Fields{
					"batch_id":   batchID,
					"project_id": projectID,
				}).Error("failed to refresh batch")
				return nil
			}
			if res.Refreshed {
				report.Refreshed = append(report.Refreshed, Refresh{
					BatchID:      batchID,
					ProjectID:    projectID,
					NewBatchID:   res.NewBatchID,
					FallbackUsed: res.FallbackUsed,
				})
			}
			return nil
		})
	}
	_ = g.Wait()
}

// refreshOne refreshes a single batch under its own deadline, turning a panic into an error.
func (s *Sweeper) refreshOne(ctx context.Context, batchID uuid.UUID) (res *assignment.RefreshResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	bctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()
	return s.lifecycle.RefreshExhausted(bctx, batchID)
}
