package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/gigmatch/internal/types"
)

// -----------------------------------------------------------------------------
// Project Methods
// -----------------------------------------------------------------------------

func scanProject(row pgx.Row) (*types.Project, error) {
	var p types.Project
	err := row.Scan(&p.ID, &p.ClientID, &p.Title, &p.Description, &p.Skills, &p.Status,
		&p.AssignedDeveloperID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	return &p, nil
}

// CreateProject inserts an open project and returns it
func (db *DB) CreateProject(ctx context.Context, input *NewProject) (*types.Project, error) {
	skills := input.Skills
	if skills == nil {
		skills = []string{}
	}

	p, err := scanProject(db.pool.QueryRow(ctx,
		`INSERT INTO projects (client_id, title, description, skills, status)
		 VALUES ($1, $2, $3, $4, 'open')
		 RETURNING `+projectColumns,
		input.ClientID, input.Title, input.Description, skills,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by ID
func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*types.Project, error) {
	p, err := scanProject(db.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// MarkProjectAssigned moves an open project to in_progress with the winning developer.
// Re-running it for the same developer is a no-op.
func (db *DB) MarkProjectAssigned(ctx context.Context, projectID, developerID uuid.UUID) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE projects
		 SET status = 'in_progress', assigned_developer_id = $2, updated_at = NOW()
		 WHERE id = $1 AND (status = 'open' OR (status = 'in_progress' AND assigned_developer_id = $2))`,
		projectID, developerID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark project assigned: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotTransitioned)
	}
	return nil
}

// UpdateProjectStatus sets the project status unconditionally
func (db *DB) UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status types.ProjectStatus) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1`,
		projectID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// RepairProjectAssignments assigns open projects that already have a winning
// candidate. Returns the number of projects moved to in_progress.
func (db *DB) RepairProjectAssignments(ctx context.Context) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE projects p
		 SET status = 'in_progress', assigned_developer_id = w.developer_id, updated_at = NOW()
		 FROM candidates w
		 WHERE w.project_id = p.id AND w.is_first_accepted AND p.status = 'open'`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to repair project assignments: %w", err)
	}
	return result.RowsAffected(), nil
}
