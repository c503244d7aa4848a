package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/db"
	"github.com/jonathan/gigmatch/internal/types"
)

// ProjectUpdater moves a project forward once a developer is assigned.
type ProjectUpdater interface {
	MarkProjectAssigned(ctx context.Context, projectID, developerID uuid.UUID) error
}

// Store is the transactional storage the lifecycle runs against.
//
// Every state change is a conditional update: a write whose guard no longer
// holds returns db.ErrNotTransitioned (or db.ErrWinnerExists /
// db.ErrBatchSuperseded / db.ErrAlreadyInvited for the constraint-backed
// guards) and changes nothing. Lookups return nil, nil when the row is missing.
type Store interface {
	ProjectUpdater

	CreateProject(ctx context.Context, input *db.NewProject) (*types.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*types.Project, error)
	UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status types.ProjectStatus) error
	RepairProjectAssignments(ctx context.Context) (int64, error)

	GetDeveloper(ctx context.Context, id uuid.UUID) (*types.Developer, error)
	ListDeveloperPool(ctx context.Context, q db.PoolQuery) ([]types.Developer, error)

	CreateBatch(ctx context.Context, input *db.NewBatch) (*types.BatchWithCandidates, error)
	AddCandidates(ctx context.Context, batchID uuid.UUID, input []db.NewCandidate, assignedAt time.Time) ([]types.Candidate, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*types.Batch, error)
	GetActiveBatch(ctx context.Context, projectID uuid.UUID, batchType types.BatchType) (*types.Batch, error)
	LatestBatch(ctx context.Context, projectID uuid.UUID, batchType types.BatchType) (*types.Batch, error)
	MarkBatchExhausted(ctx context.Context, batchID uuid.UUID) (bool, error)
	CloseBatches(ctx context.Context, projectID uuid.UUID) (int64, error)
	ListRefreshableBatches(ctx context.Context, limit int) ([]types.Batch, error)

	GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error)
	ListBatchCandidates(ctx context.Context, batchID uuid.UUID) ([]types.Candidate, error)
	AcceptCandidate(ctx context.Context, id, developerID uuid.UUID, now time.Time) (*types.Candidate, error)
	RejectCandidate(ctx context.Context, id, developerID uuid.UUID, now time.Time) (*types.Candidate, error)
	ExpireStaleCandidates(ctx context.Context, now time.Time) ([]types.Candidate, error)
	SettleWinner(ctx context.Context, winner *types.Candidate, scope db.SettleScope) (int64, error)
	InvalidateOrphanedPending(ctx context.Context) ([]types.Candidate, error)
	ListPendingByDeveloper(ctx context.Context, developerID uuid.UUID, now time.Time) ([]types.Candidate, error)
	ListRecentActivityByDeveloper(ctx context.Context, developerID uuid.UUID, limit int) ([]types.Candidate, error)
}

var _ Store = (*db.DB)(nil)
