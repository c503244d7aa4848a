package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/gigmatch/internal/types"
)

// -----------------------------------------------------------------------------
// Candidate Methods
// -----------------------------------------------------------------------------

func scanCandidate(row pgx.Row) (*types.Candidate, error) {
	var c types.Candidate
	err := row.Scan(&c.ID, &c.BatchID, &c.DeveloperID, &c.ProjectID, &c.Level, &c.ResponseStatus,
		&c.AssignedAt, &c.AcceptanceDeadline, &c.RespondedAt, &c.IsFirstAccepted, &c.Source)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCandidates(rows pgx.Rows) ([]types.Candidate, error) {
	defer rows.Close()
	var candidates []types.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// GetCandidate retrieves a candidate by ID
func (db *DB) GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error) {
	c, err := scanCandidate(db.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// ListBatchCandidates retrieves every candidate of a batch in invitation order
func (db *DB) ListBatchCandidates(ctx context.Context, batchID uuid.UUID) ([]types.Candidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 WHERE batch_id = $1
		 ORDER BY assigned_at ASC, level ASC`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch candidates: %w", err)
	}
	candidates, err := collectCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch candidates: %w", err)
	}
	return candidates, nil
}

// AcceptCandidate performs the winning accept as one conditional update.
//
// The row changes only if it is still pending, owned by developerID, inside its
// deadline, in an active batch of an open project, and the project has no
// winner yet. The project row is share-locked so a concurrent close either
// lands first or waits for the accept. Two concurrent winners for one project
// collide on candidates_one_winner_per_project and the loser gets
// ErrWinnerExists. A guard mismatch returns ErrNotTransitioned.
func (db *DB) AcceptCandidate(ctx context.Context, id, developerID uuid.UUID, now time.Time) (*types.Candidate, error) {
	c, err := scanCandidate(db.pool.QueryRow(ctx,
		`UPDATE candidates c
		 SET response_status = 'accepted', responded_at = $3, is_first_accepted = TRUE
		 WHERE c.id = $1
		   AND c.developer_id = $2
		   AND c.response_status = 'pending'
		   AND (c.acceptance_deadline IS NULL OR c.acceptance_deadline > $3)
		   AND EXISTS (SELECT 1 FROM batches b WHERE b.id = c.batch_id AND b.status = 'active')
		   AND EXISTS (SELECT 1 FROM projects p WHERE p.id = c.project_id AND p.status = 'open' FOR SHARE)
		   AND NOT EXISTS (SELECT 1 FROM candidates w WHERE w.project_id = c.project_id AND w.is_first_accepted)
		 RETURNING `+candidateColumnsC,
		id, developerID, now,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotTransitioned
		}
		if translated := translateWriteError(err); translated != err {
			return nil, translated
		}
		return nil, fmt.Errorf("failed to accept candidate: %w", err)
	}
	return c, nil
}

// RejectCandidate records a developer's decline as one conditional update.
func (db *DB) RejectCandidate(ctx context.Context, id, developerID uuid.UUID, now time.Time) (*types.Candidate, error) {
	c, err := scanCandidate(db.pool.QueryRow(ctx,
		`UPDATE candidates c
		 SET response_status = 'rejected', responded_at = $3
		 WHERE c.id = $1
		   AND c.developer_id = $2
		   AND c.response_status = 'pending'
		   AND (c.acceptance_deadline IS NULL OR c.acceptance_deadline > $3)
		 RETURNING `+candidateColumnsC,
		id, developerID, now,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotTransitioned
		}
		return nil, fmt.Errorf("failed to reject candidate: %w", err)
	}
	return c, nil
}

// ExpireStaleCandidates moves every pending candidate whose deadline is at or
// before now to expired, skipping no-expire batches. Already expired rows are
// not matched, so a repeated call with the same now returns nothing.
func (db *DB) ExpireStaleCandidates(ctx context.Context, now time.Time) ([]types.Candidate, error) {
	rows, err := db.pool.Query(ctx,
		`UPDATE candidates c
		 SET response_status = 'expired'
		 FROM batches b
		 WHERE b.id = c.batch_id
		   AND NOT b.no_expire
		   AND c.response_status = 'pending'
		   AND c.acceptance_deadline IS NOT NULL
		   AND c.acceptance_deadline <= $1
		 RETURNING `+candidateColumnsC,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expire candidates: %w", err)
	}
	expired, err := collectCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to expire candidates: %w", err)
	}
	return expired, nil
}

// SettleWinner invalidates the pending siblings of a winning candidate and
// closes the batches involved. With SettleProject every pending candidate of
// the project is invalidated; with SettleBatch only the winner's batch.
// Safe to repeat; returns the number of candidates invalidated by this call.
func (db *DB) SettleWinner(ctx context.Context, winner *types.Candidate, scope SettleScope) (int64, error) {
	var invalidated int64
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		var (
			query string
			arg   uuid.UUID
		)
		if scope == SettleProject {
			query = `UPDATE candidates SET response_status = 'invalidated'
			         WHERE project_id = $1 AND id <> $2 AND response_status = 'pending'`
			arg = winner.ProjectID
		} else {
			query = `UPDATE candidates SET response_status = 'invalidated'
			         WHERE batch_id = $1 AND id <> $2 AND response_status = 'pending'`
			arg = winner.BatchID
		}

		tag, err := tx.Exec(ctx, query, arg, winner.ID)
		if err != nil {
			return fmt.Errorf("failed to invalidate siblings: %w", err)
		}
		invalidated = tag.RowsAffected()

		closeQuery := `UPDATE batches SET status = 'closed', updated_at = NOW()
		               WHERE id = $1 AND status IN ('active', 'exhausted')`
		closeArg := winner.BatchID
		if scope == SettleProject {
			closeQuery = `UPDATE batches b SET status = 'closed', updated_at = NOW()
			              WHERE b.project_id = $1 AND b.status IN ('active', 'exhausted')
			                AND NOT EXISTS (SELECT 1 FROM candidates c
			                                WHERE c.batch_id = b.id AND c.response_status = 'pending')`
			closeArg = winner.ProjectID
		}
		if _, err := tx.Exec(ctx, closeQuery, closeArg); err != nil {
			return fmt.Errorf("failed to close settled batches: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return invalidated, nil
}

// InvalidateOrphanedPending invalidates pending candidates that can no longer
// win: same batch as any winner, same project as an auto-rotation winner, or a
// project that is no longer open. It completes settlements interrupted after
// the accept.
func (db *DB) InvalidateOrphanedPending(ctx context.Context) ([]types.Candidate, error) {
	rows, err := db.pool.Query(ctx,
		`UPDATE candidates c
		 SET response_status = 'invalidated'
		 WHERE c.response_status = 'pending'
		   AND (EXISTS (
		       SELECT 1 FROM candidates w
		       WHERE w.is_first_accepted AND w.id <> c.id
		         AND (w.batch_id = c.batch_id
		              OR (w.project_id = c.project_id AND w.source = 'AUTO_ROTATION')))
		    OR EXISTS (SELECT 1 FROM projects p WHERE p.id = c.project_id AND p.status <> 'open'))
		 RETURNING `+candidateColumnsC,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate orphaned candidates: %w", err)
	}
	orphans, err := collectCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate orphaned candidates: %w", err)
	}
	return orphans, nil
}

// ListPendingByDeveloper returns a developer's open invitations whose deadline
// has not passed at now, soonest deadline first
func (db *DB) ListPendingByDeveloper(ctx context.Context, developerID uuid.UUID, now time.Time) ([]types.Candidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 WHERE developer_id = $1 AND response_status = 'pending'
		   AND (acceptance_deadline IS NULL OR acceptance_deadline > $2)
		 ORDER BY acceptance_deadline ASC NULLS LAST, assigned_at ASC`,
		developerID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	candidates, err := collectCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	return candidates, nil
}

// ListRecentActivityByDeveloper returns a developer's terminal invitations, newest first
func (db *DB) ListRecentActivityByDeveloper(ctx context.Context, developerID uuid.UUID, limit int) ([]types.Candidate, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 WHERE developer_id = $1 AND response_status <> 'pending'
		 ORDER BY COALESCE(responded_at, assigned_at) DESC
		 LIMIT $2`,
		developerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent activity: %w", err)
	}
	candidates, err := collectCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent activity: %w", err)
	}
	return candidates, nil
}
