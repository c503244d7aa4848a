// Package types provides type definitions for structured data used throughout the gigmatch system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Level is the experience tier used when composing a batch.
type Level string

const (
	LevelExpert  Level = "EXPERT"
	LevelMid     Level = "MID"
	LevelFresher Level = "FRESHER"
)

// Levels lists every tier in composition order.
var Levels = []Level{LevelExpert, LevelMid, LevelFresher}

// IsValid reports whether l is a known tier.
func (l Level) IsValid() bool {
	switch l {
	case LevelExpert, LevelMid, LevelFresher:
		return true
	}
	return false
}

// ResponseStatus is the state of a candidate invitation.
type ResponseStatus string

const (
	ResponsePending     ResponseStatus = "pending"
	ResponseAccepted    ResponseStatus = "accepted"
	ResponseRejected    ResponseStatus = "rejected"
	ResponseExpired     ResponseStatus = "expired"
	ResponseInvalidated ResponseStatus = "invalidated"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s ResponseStatus) IsTerminal() bool {
	return s != ResponsePending
}

// IsDeveloperDriven reports whether s is reached by a developer action (and therefore carries responded_at).
func (s ResponseStatus) IsDeveloperDriven() bool {
	return s == ResponseAccepted || s == ResponseRejected
}

// BatchStatus is the state of one round of invitations.
type BatchStatus string

const (
	BatchActive    BatchStatus = "active"
	BatchExhausted BatchStatus = "exhausted"
	BatchRefreshed BatchStatus = "refreshed"
	BatchClosed    BatchStatus = "closed"
)

// BatchType distinguishes rotation batches from manual invitations.
type BatchType string

const (
	BatchAutoRotation BatchType = "auto_rotation"
	BatchManualInvite BatchType = "manual_invite"
)

// IsValid reports whether t is a known batch type.
func (t BatchType) IsValid() bool {
	return t == BatchAutoRotation || t == BatchManualInvite
}

// Source records how a candidate was invited.
type Source string

const (
	SourceAutoRotation Source = "AUTO_ROTATION"
	SourceManualInvite Source = "MANUAL_INVITE"
)

// SourceFor returns the candidate source matching a batch type.
func SourceFor(t BatchType) Source {
	if t == BatchManualInvite {
		return SourceManualInvite
	}
	return SourceAutoRotation
}

// ProjectStatus is the lifecycle state of a posted project.
type ProjectStatus string

const (
	ProjectOpen       ProjectStatus = "open"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// Project is a unit of work posted by a client.
type Project struct {
	ID                  uuid.UUID     `json:"id"`
	ClientID            uuid.UUID     `json:"client_id"`
	Title               string        `json:"title"`
	Description         string        `json:"description,omitempty"`
	Skills              []string      `json:"skills"`
	Status              ProjectStatus `json:"status"`
	AssignedDeveloperID *uuid.UUID    `json:"assigned_developer_id,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Developer is a member of the invitation pool.
type Developer struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Level         Level      `json:"level"`
	Skills        []string   `json:"skills"`
	Active        bool       `json:"active"`
	LastInvitedAt *time.Time `json:"last_invited_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Batch is one round of invitations for a project.
type Batch struct {
	ID              uuid.UUID   `json:"id"`
	ProjectID       uuid.UUID   `json:"project_id"`
	Status          BatchStatus `json:"status"`
	Type            BatchType   `json:"type"`
	NoExpire        bool        `json:"no_expire"`
	Sequence        int         `json:"sequence"`
	PreviousBatchID *uuid.UUID  `json:"previous_batch_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Candidate is a single developer's invitation record for one batch.
type Candidate struct {
	ID                 uuid.UUID      `json:"id"`
	BatchID            uuid.UUID      `json:"batch_id"`
	DeveloperID        uuid.UUID      `json:"developer_id"`
	ProjectID          uuid.UUID      `json:"project_id"`
	Level              Level          `json:"level"`
	ResponseStatus     ResponseStatus `json:"response_status"`
	AssignedAt         time.Time      `json:"assigned_at"`
	AcceptanceDeadline *time.Time     `json:"acceptance_deadline,omitempty"`
	RespondedAt        *time.Time     `json:"responded_at,omitempty"`
	IsFirstAccepted    bool           `json:"is_first_accepted"`
	Source             Source         `json:"source"`
}

// DeadlinePassed reports whether the acceptance window is over at now.
// A candidate without a deadline never lapses.
func (c *Candidate) DeadlinePassed(now time.Time) bool {
	return c.AcceptanceDeadline != nil && !now.Before(*c.AcceptanceDeadline)
}

// BatchWithCandidates bundles a batch and its invitation rows.
type BatchWithCandidates struct {
	Batch      Batch       `json:"batch"`
	Candidates []Candidate `json:"candidates"`
}
