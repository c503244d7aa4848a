package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/gigmatch/internal/types"
)

// -----------------------------------------------------------------------------
// Developer Methods
// -----------------------------------------------------------------------------

func scanDeveloper(row pgx.Row) (*types.Developer, error) {
	var d types.Developer
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Level, &d.Skills, &d.Active, &d.LastInvitedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if d.Skills == nil {
		d.Skills = []string{}
	}
	return &d, nil
}

// CreateDeveloper adds an active developer to the invitation pool
func (db *DB) CreateDeveloper(ctx context.Context, input *NewDeveloper) (*types.Developer, error) {
	skills := input.Skills
	if skills == nil {
		skills = []string{}
	}

	d, err := scanDeveloper(db.pool.QueryRow(ctx,
		`INSERT INTO developers (name, email, level, skills)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+developerColumns,
		input.Name, input.Email, string(input.Level), skills,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create developer: %w", err)
	}
	return d, nil
}

// GetDeveloper retrieves a developer by ID
func (db *DB) GetDeveloper(ctx context.Context, id uuid.UUID) (*types.Developer, error) {
	d, err := scanDeveloper(db.pool.QueryRow(ctx,
		`SELECT `+developerColumns+` FROM developers WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get developer: %w", err)
	}
	return d, nil
}

// ListDeveloperPool returns active developers of one level, best skill overlap
// first, then least recently invited.
func (db *DB) ListDeveloperPool(ctx context.Context, q PoolQuery) ([]types.Developer, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	skills := q.Skills
	if skills == nil {
		skills = []string{}
	}
	exclude := q.ExcludeIDs
	if exclude == nil {
		exclude = []uuid.UUID{}
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+developerColumns+`
		 FROM developers
		 WHERE active AND level = $1 AND NOT (id = ANY($2::uuid[]))
		 ORDER BY cardinality(ARRAY(SELECT unnest(skills) INTERSECT SELECT unnest($3::text[]))) DESC,
		          last_invited_at ASC NULLS FIRST,
		          created_at ASC
		 LIMIT $4`,
		string(q.Level), exclude, skills, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list developer pool: %w", err)
	}
	defer rows.Close()

	var developers []types.Developer
	for rows.Next() {
		d, err := scanDeveloper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan developer: %w", err)
		}
		developers = append(developers, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list developer pool: %w", err)
	}
	return developers, nil
}
