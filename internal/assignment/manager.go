// Package assignment implements the candidate invitation lifecycle: composing
// batches of developers for a project, recording their responses with
// first-accept-wins semantics, expiring lapsed invitations and refreshing
// exhausted batches.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/notify"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/sirupsen/logrus"
)

// notifyTimeout bounds a single call to the notifier.
const notifyTimeout = 5 * time.Second

// Manager runs lifecycle operations against a Store. It keeps no candidate
// state between calls; every operation re-reads the store.
type Manager struct {
	store    Store
	notifier notify.Notifier
	policy   Policy
	retry    RetryPolicy
	log      *logrus.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the collaborator told about accepts and new invitations.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithRetryPolicy overrides the transient-error retry policy.
func WithRetryPolicy(r RetryPolicy) Option {
	return func(m *Manager) { m.retry = r }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager.
func NewManager(store Store, policy Policy, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		notifier: notify.NoopNotifier{},
		policy:   policy,
		retry:    DefaultRetryPolicy(),
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the composition policy in use.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// storeError passes typed errors through and wraps everything else.
func storeError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func candidateFields(c *types.Candidate) logrus.Fields {
	return logrus.Fields{
		"candidate_id": c.ID,
		"batch_id":     c.BatchID,
		"project_id":   c.ProjectID,
		"developer_id": c.DeveloperID,
	}
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

// PostProjectInput describes a new project.
type PostProjectInput struct {
	ClientID    uuid.UUID
	Title       string
	Description string
	Skills      []string
	LevelMix    LevelMix
}

// PostProject creates an open project and composes its first rotation batch.
// Once the project is stored it is always returned; if the first batch cannot
// be composed the batch is nil and a later compose fills it.
func (m *Manager) PostProject(ctx context.Context, in PostProjectInput) (*types.Project, *types.BatchWithCandidates, error) {
	if len(in.LevelMix) > 0 {
		if err := in.LevelMix.Validate(); err != nil {
			return nil, nil, newError(KindValidation, err.Error(), nil)
		}
	}

	var project *types.Project
	err := m.retry.do(ctx, "create project", func(ctx context.Context) error {
		var err error
		project, err = m.store.CreateProject(ctx, &db.NewProject{
			ClientID:    in.ClientID,
			Title:       in.Title,
			Description: in.Description,
			Skills:      in.Skills,
		})
		return err
	})
	if err != nil {
		return nil, nil, storeError("create project", err)
	}

	batch, err := m.ComposeBatch(ctx, ComposeRequest{ProjectID: project.ID, LevelMix: in.LevelMix})
	if err != nil {
		log := m.log.WithField("project_id", project.ID)
		if KindOf(err) == KindNotFound {
			log.Warn("no developers available for first batch")
		} else {
			log.WithError(err).Error("failed to compose first batch")
		}
		return project, nil, nil
	}
	return project, batch, nil
}

// Project returns a project or NOT_FOUND.
func (m *Manager) Project(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	var project *types.Project
	err := m.retry.do(ctx, "get project", func(ctx context.Context) error {
		var err error
		project, err = m.store.GetProject(ctx, id)
		return err
	})
	if err != nil {
		return nil, storeError("get project", err)
	}
	if project == nil {
		return nil, newError(KindNotFound, "project not found", nil)
	}
	return project, nil
}

// CloseResult reports the outcome of CloseProject.
type CloseResult struct {
	Status      types.ProjectStatus
	Invalidated int64
}

// CloseProject ends recruitment for a project: an open project is cancelled,
// an assigned one is completed, and every live batch is closed with its
// pending candidates invalidated.
func (m *Manager) CloseProject(ctx context.Context, projectID uuid.UUID) (*CloseResult, error) {
	project, err := m.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var status types.ProjectStatus
	switch project.Status {
	case types.ProjectOpen:
		status = types.ProjectCancelled
	case types.ProjectInProgress:
		status = types.ProjectCompleted
	default:
		return nil, newError(KindConflict, "project is already closed", nil)
	}

	// Status first: batch creation re-checks it under the project lock.
	err = m.retry.do(ctx, "update project status", func(ctx context.Context) error {
		return m.store.UpdateProjectStatus(ctx, projectID, status)
	})
	if err != nil {
		return nil, storeError("update project status", err)
	}

	var invalidated int64
	err = m.retry.do(ctx, "close batches", func(ctx context.Context) error {
		var err error
		invalidated, err = m.store.CloseBatches(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, storeError("close batches", err)
	}

	m.log.WithFields(logrus.Fields{
		"project_id":  projectID,
		"status":      status,
		"invalidated": invalidated,
	}).Info("project closed")
	return &CloseResult{Status: status, Invalidated: invalidated}, nil
}

// -----------------------------------------------------------------------------
// Read queries
// -----------------------------------------------------------------------------

// ActiveBatch returns the live batch of one type with its candidates, or NOT_FOUND.
func (m *Manager) ActiveBatch(ctx context.Context, projectID uuid.UUID, batchType types.BatchType) (*types.BatchWithCandidates, error) {
	var result *types.BatchWithCandidates
	err := m.retry.do(ctx, "get active batch", func(ctx context.Context) error {
		batch, err := m.store.GetActiveBatch(ctx, projectID, batchType)
		if err != nil || batch == nil {
			result = nil
			return err
		}
		candidates, err := m.store.ListBatchCandidates(ctx, batch.ID)
		if err != nil {
			return err
		}
		result = &types.BatchWithCandidates{Batch: *batch, Candidates: candidates}
		return nil
	})
	if err != nil {
		return nil, storeError("get active batch", err)
	}
	if result == nil {
		return nil, newError(KindNotFound, "project has no active batch", nil)
	}
	return result, nil
}

// PendingInvitations lists a developer's open invitations that can still be answered.
func (m *Manager) PendingInvitations(ctx context.Context, developerID uuid.UUID) ([]types.Candidate, error) {
	var out []types.Candidate
	err := m.retry.do(ctx, "list pending invitations", func(ctx context.Context) error {
		var err error
		out, err = m.store.ListPendingByDeveloper(ctx, developerID, m.now())
		return err
	})
	if err != nil {
		return nil, storeError("list pending invitations", err)
	}
	return out, nil
}

// RecentActivity lists a developer's terminal invitations, newest first.
func (m *Manager) RecentActivity(ctx context.Context, developerID uuid.UUID, limit int) ([]types.Candidate, error) {
	var out []types.Candidate
	err := m.retry.do(ctx, "list recent activity", func(ctx context.Context) error {
		var err error
		out, err = m.store.ListRecentActivityByDeveloper(ctx, developerID, limit)
		return err
	})
	if err != nil {
		return nil, storeError("list recent activity", err)
	}
	return out, nil
}
