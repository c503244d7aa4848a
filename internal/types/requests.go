//nolint:revive // types is a standard Go package name pattern
package types

import (
	"github.com/go-playground/validator/v10"
)

// Respond actions accepted by the candidate state machine.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// RespondRequest is the body of a developer's answer to an invitation.
type RespondRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// CreateProjectRequest posts a project and composes its first batch.
type CreateProjectRequest struct {
	Title       string        `json:"title" validate:"required,min=3,max=200"`
	Description string        `json:"description,omitempty" validate:"max=5000"`
	Skills      []string      `json:"skills" validate:"max=30,dive,required,max=64"`
	LevelMix    map[Level]int `json:"level_mix,omitempty" validate:"omitempty,dive,keys,oneof=EXPERT MID FRESHER,endkeys,min=0,max=10"`
}

// ComposeBatchRequest asks for a new invitation round on an existing project.
type ComposeBatchRequest struct {
	LevelMix map[Level]int `json:"level_mix,omitempty" validate:"omitempty,dive,keys,oneof=EXPERT MID FRESHER,endkeys,min=0,max=10"`
	NoExpire bool          `json:"no_expire,omitempty"`
}

// ManualInviteRequest invites one developer outside the rotation.
// A zero WindowMinutes makes the invitation non-expiring.
type ManualInviteRequest struct {
	DeveloperID   string `json:"developer_id" validate:"required,uuid"`
	WindowMinutes int    `json:"window_minutes,omitempty" validate:"min=0,max=10080"`
}

// Validate validates the RespondRequest using the validator.
func (r *RespondRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the CreateProjectRequest using the validator.
func (r *CreateProjectRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the ComposeBatchRequest using the validator.
func (r *ComposeBatchRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the ManualInviteRequest using the validator.
func (r *ManualInviteRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
