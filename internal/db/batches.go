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
// Batch Methods
// -----------------------------------------------------------------------------

func scanBatch(row pgx.Row) (*types.Batch, error) {
	var b types.Batch
	err := row.Scan(&b.ID, &b.ProjectID, &b.Status, &b.Type, &b.NoExpire, &b.Sequence,
		&b.PreviousBatchID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBatches(rows pgx.Rows) ([]types.Batch, error) {
	defer rows.Close()
	var batches []types.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

func statusStrings(statuses []types.BatchStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// CreateBatch creates a batch and its candidates atomically. The project row is
// locked for the duration so concurrent composes and refreshes serialize.
func (db *DB) CreateBatch(ctx context.Context, input *NewBatch) (*types.BatchWithCandidates, error) {
	var result types.BatchWithCandidates

	err := db.withTx(ctx, func(tx pgx.Tx) error {
		var projectStatus string
		err := tx.QueryRow(ctx,
			`SELECT status FROM projects WHERE id = $1 FOR UPDATE`, input.ProjectID,
		).Scan(&projectStatus)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrProjectNotFound
			}
			return fmt.Errorf("failed to lock project: %w", err)
		}
		if projectStatus != string(types.ProjectOpen) {
			return ErrProjectNotOpen
		}

		if input.Supersede != nil {
			tag, err := tx.Exec(ctx,
				`UPDATE batches SET status = 'refreshed', updated_at = NOW()
				 WHERE id = $1 AND project_id = $2 AND status = ANY($3::text[])`,
				*input.Supersede, input.ProjectID, statusStrings(input.SupersedeFrom),
			)
			if err != nil {
				return fmt.Errorf("failed to supersede batch: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrBatchSuperseded
			}
			if _, err := tx.Exec(ctx,
				`UPDATE candidates SET response_status = 'invalidated'
				 WHERE batch_id = $1 AND response_status = 'pending'`,
				*input.Supersede,
			); err != nil {
				return fmt.Errorf("failed to invalidate superseded candidates: %w", err)
			}
		}

		batch, err := scanBatch(tx.QueryRow(ctx,
			`INSERT INTO batches (project_id, status, type, no_expire, sequence, previous_batch_id, created_at, updated_at)
			 VALUES ($1, 'active', $2, $3,
			         (SELECT COALESCE(MAX(sequence), 0) + 1 FROM batches WHERE project_id = $1),
			         $4, $5, $5)
			 RETURNING `+batchColumns,
			input.ProjectID, string(input.Type), input.NoExpire, input.Supersede, input.AssignedAt,
		))
		if err != nil {
			return fmt.Errorf("failed to insert batch: %w", translateWriteError(err))
		}
		result.Batch = *batch

		candidates, err := insertCandidates(ctx, tx, batch, input.AssignedAt, input.Candidates)
		if err != nil {
			return err
		}
		result.Candidates = candidates
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AddCandidates appends invitations to a live batch (manual-invite track).
func (db *DB) AddCandidates(ctx context.Context, batchID uuid.UUID, input []NewCandidate, assignedAt time.Time) ([]types.Candidate, error) {
	var out []types.Candidate
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		batch, err := scanBatch(tx.QueryRow(ctx,
			`SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, batchID))
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrNotTransitioned
			}
			return fmt.Errorf("failed to lock batch: %w", err)
		}
		if batch.Status != types.BatchActive {
			return ErrBatchSuperseded
		}
		out, err = insertCandidates(ctx, tx, batch, assignedAt, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertCandidates(ctx context.Context, tx pgx.Tx, batch *types.Batch, assignedAt time.Time, input []NewCandidate) ([]types.Candidate, error) {
	source := string(types.SourceFor(batch.Type))
	candidates := make([]types.Candidate, 0, len(input))
	developerIDs := make([]uuid.UUID, 0, len(input))

	for _, nc := range input {
		c, err := scanCandidate(tx.QueryRow(ctx,
			`INSERT INTO candidates (batch_id, developer_id, project_id, level, response_status,
			                         assigned_at, acceptance_deadline, source)
			 VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7)
			 RETURNING `+candidateColumns,
			batch.ID, nc.DeveloperID, batch.ProjectID, string(nc.Level), assignedAt, nc.Deadline, source,
		))
		if err != nil {
			return nil, fmt.Errorf("failed to insert candidate: %w", translateWriteError(err))
		}
		candidates = append(candidates, *c)
		developerIDs = append(developerIDs, nc.DeveloperID)
	}

	if len(developerIDs) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE developers SET last_invited_at = $2 WHERE id = ANY($1::uuid[])`,
			developerIDs, assignedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to stamp last_invited_at: %w", err)
		}
	}
	return candidates, nil
}

// GetBatch retrieves a batch by ID
func (db *DB) GetBatch(ctx context.Context, id uuid.UUID) (*types.Batch, error) {
	b, err := scanBatch(db.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return b, nil
}

// GetActiveBatch retrieves the live batch of one type for a project
func (db *DB) GetActiveBatch(ctx context.Context, projectID uuid.UUID, batchType types.BatchType) (*types.Batch, error) {
	b, err := scanBatch(db.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches
		 WHERE project_id = $1 AND type = $2 AND status = 'active'`,
		projectID, string(batchType)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active batch: %w", err)
	}
	return b, nil
}

// LatestBatch retrieves the most recent batch of one type for a project, whatever its status
func (db *DB) LatestBatch(ctx context.Context, projectID uuid.UUID, batchType types.BatchType) (*types.Batch, error) {
	b, err := scanBatch(db.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches
		 WHERE project_id = $1 AND type = $2
		 ORDER BY sequence DESC LIMIT 1`,
		projectID, string(batchType)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest batch: %w", err)
	}
	return b, nil
}

// MarkBatchExhausted moves an active batch to exhausted when every candidate is
// terminal and none was accepted. Returns true if this call made the transition.
func (db *DB) MarkBatchExhausted(ctx context.Context, batchID uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE batches b SET status = 'exhausted', updated_at = NOW()
		 WHERE b.id = $1 AND b.status = 'active'
		   AND EXISTS (SELECT 1 FROM candidates c WHERE c.batch_id = b.id)
		   AND NOT EXISTS (
		       SELECT 1 FROM candidates c
		       WHERE c.batch_id = b.id AND c.response_status IN ('pending', 'accepted'))`,
		batchID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark batch exhausted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CloseBatches closes every live or exhausted batch of a project and invalidates
// their pending candidates. Returns the number of invalidated candidates.
func (db *DB) CloseBatches(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var invalidated int64
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE candidates c SET response_status = 'invalidated'
			 FROM batches b
			 WHERE b.id = c.batch_id AND b.project_id = $1
			   AND b.status IN ('active', 'exhausted') AND c.response_status = 'pending'`,
			projectID,
		)
		if err != nil {
			return fmt.Errorf("failed to invalidate candidates: %w", err)
		}
		invalidated = tag.RowsAffected()

		if _, err := tx.Exec(ctx,
			`UPDATE batches SET status = 'closed', updated_at = NOW()
			 WHERE project_id = $1 AND status IN ('active', 'exhausted')`,
			projectID,
		); err != nil {
			return fmt.Errorf("failed to close batches: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return invalidated, nil
}

// ListRefreshableBatches returns auto-rotation batches of open projects that have
// no pending and no accepted candidate: exhausted ones, and active ones whose
// exhaustion was not yet recorded.
func (db *DB) ListRefreshableBatches(ctx context.Context, limit int) ([]types.Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+batchColumnsB+`
		 FROM batches b
		 JOIN projects p ON p.id = b.project_id
		 WHERE b.type = 'auto_rotation' AND p.status = 'open'
		   AND b.status IN ('active', 'exhausted')
		   AND EXISTS (SELECT 1 FROM candidates c WHERE c.batch_id = b.id)
		   AND NOT EXISTS (
		       SELECT 1 FROM candidates c
		       WHERE c.batch_id = b.id AND c.response_status IN ('pending', 'accepted'))
		 ORDER BY b.updated_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list refreshable batches: %w", err)
	}
	batches, err := collectBatches(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list refreshable batches: %w", err)
	}
	return batches, nil
}
