package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/types"
	"github.com/sirupsen/logrus"
)

// ExpireResult reports one ExpireStale call.
type ExpireResult struct {
	ExpiredCount int
	Candidates   []types.Candidate

	// BatchIDs lists each batch that had a candidate expired, in first-seen order.
	BatchIDs []uuid.UUID
}

// ExpireStale moves every pending candidate whose deadline is at or before now
// to expired. Candidates of no-expire batches are skipped. A second call with
// the same now expires nothing.
func (m *Manager) ExpireStale(ctx context.Context, now time.Time) (*ExpireResult, error) {
	var expired []types.Candidate
	err := m.retry.do(ctx, "expire candidates", func(ctx context.Context) error {
		var err error
		expired, err = m.store.ExpireStaleCandidates(ctx, now)
		return err
	})
	if err != nil {
		return nil, storeError("expire candidates", err)
	}

	result := &ExpireResult{ExpiredCount: len(expired), Candidates: expired}
	seen := make(map[uuid.UUID]bool)
	for _, c := range expired {
		if !seen[c.BatchID] {
			seen[c.BatchID] = true
			result.BatchIDs = append(result.BatchIDs, c.BatchID)
		}
	}

	if result.ExpiredCount > 0 {
		m.log.WithFields(logrus.Fields{
			"expired": result.ExpiredCount,
			"batches": len(result.BatchIDs),
		}).Info("expired stale candidates")
	}
	return result, nil
}

// RepairResult reports one RepairSettlements call.
type RepairResult struct {
	ProjectsAssigned int64
	Invalidated      []types.Candidate
}

// RepairSettlements finishes accepts whose post-commit steps failed: projects
// with a winner are marked assigned, and pending candidates that can no longer
// win are invalidated.
func (m *Manager) RepairSettlements(ctx context.Context) (*RepairResult, error) {
	result := &RepairResult{}

	err := m.retry.do(ctx, "repair project assignments", func(ctx context.Context) error {
		var err error
		result.ProjectsAssigned, err = m.store.RepairProjectAssignments(ctx)
		return err
	})
	if err != nil {
		return nil, storeError("repair project assignments", err)
	}

	err = m.retry.do(ctx, "invalidate orphaned candidates", func(ctx context.Context) error {
		var err error
		result.Invalidated, err = m.store.InvalidateOrphanedPending(ctx)
		return err
	})
	if err != nil {
		return nil, storeError("invalidate orphaned candidates", err)
	}

	for i := range result.Invalidated {
		m.log.WithFields(candidateFields(&result.Invalidated[i])).Warn("invalidated orphaned pending candidate")
	}
	return result, nil
}

// RefreshableBatches lists rotation batches with nothing pending and no winner.
func (m *Manager) RefreshableBatches(ctx context.Context, limit int) ([]types.Batch, error) {
	var batches []types.Batch
	err := m.retry.do(ctx, "list refreshable batches", func(ctx context.Context) error {
		var err error
		batches, err = m.store.ListRefreshableBatches(ctx, limit)
		return err
	})
	if err != nil {
		return nil, storeError("list refreshable batches", err)
	}
	return batches, nil
}
