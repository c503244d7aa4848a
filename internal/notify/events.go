package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/types"
)

// Event types published on the event channel
const (
	EventCandidateAccepted = "candidate.accepted"
	EventBatchComposed     = "batch.composed"
)

// CandidateAcceptedEvent is emitted once per project when an accept wins.
// Consumers use it to reveal contact details to both parties.
type CandidateAcceptedEvent struct {
	ProjectID   uuid.UUID `json:"project_id"`
	BatchID     uuid.UUID `json:"batch_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
	DeveloperID uuid.UUID `json:"developer_id"`
	AcceptedAt  time.Time `json:"accepted_at"`
}

// BatchComposedEvent is emitted when new invitations are created.
type BatchComposedEvent struct {
	ProjectID  uuid.UUID         `json:"project_id"`
	BatchID    uuid.UUID         `json:"batch_id"`
	Type       types.BatchType   `json:"type"`
	Refresh    bool              `json:"refresh"`
	Candidates []types.Candidate `json:"candidates"`
}
