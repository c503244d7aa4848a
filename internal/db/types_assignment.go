package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/types"
)

// NewProject holds the fields needed to create a project
type NewProject struct {
	ClientID    uuid.UUID
	Title       string
	Description string
	Skills      []string
}

// NewDeveloper holds the fields needed to add a developer to the pool
type NewDeveloper struct {
	Name   string
	Email  string
	Level  types.Level
	Skills []string
}

// PoolQuery selects invitable developers of one level
type PoolQuery struct {
	Level      types.Level
	Skills     []string    // used for ordering by overlap
	ExcludeIDs []uuid.UUID // developers that must not be returned
	Limit      int
}

// NewCandidate is one invitation row to insert with a batch
type NewCandidate struct {
	DeveloperID uuid.UUID
	Level       types.Level
	Deadline    *time.Time
}

// NewBatch describes a batch to create in a single transaction.
//
// When Supersede is set, the referenced batch must currently be in one of
// SupersedeFrom; it is moved to refreshed and its pending candidates are
// invalidated. Otherwise no live batch of the same type may exist.
type NewBatch struct {
	ProjectID     uuid.UUID
	Type          types.BatchType
	NoExpire      bool
	AssignedAt    time.Time
	Supersede     *uuid.UUID
	SupersedeFrom []types.BatchStatus
	Candidates    []NewCandidate
}

// SettleScope says which pending candidates a winning accept invalidates
type SettleScope string

const (
	SettleBatch   SettleScope = "batch"
	SettleProject SettleScope = "project"
)

// candidateColumns is the column list shared by every candidate query
const candidateColumns = `id, batch_id, developer_id, project_id, level, response_status,
	assigned_at, acceptance_deadline, responded_at, is_first_accepted, source`

// candidateColumnsC is candidateColumns qualified with the "c" alias
const candidateColumnsC = `c.id, c.batch_id, c.developer_id, c.project_id, c.level, c.response_status,
	c.assigned_at, c.acceptance_deadline, c.responded_at, c.is_first_accepted, c.source`

const batchColumns = `id, project_id, status, type, no_expire, sequence, previous_batch_id, created_at, updated_at`

const batchColumnsB = `b.id, b.project_id, b.status, b.type, b.no_expire, b.sequence, b.previous_batch_id, b.created_at, b.updated_at`

const projectColumns = `id, client_id, title, description, skills, status, assigned_developer_id, created_at, updated_at`

const developerColumns = `id, name, email, level, skills, active, last_invited_at, created_at`
