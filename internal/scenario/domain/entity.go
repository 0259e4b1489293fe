package domain

import apperrors "github.com/steiner385/capacinator/internal/platform/errors"

// EntityKind identifies which scenario-sensitive entity a delta targets.
type EntityKind string

const (
	// EntityKindProject targets project records.
	EntityKindProject EntityKind = "project"
	// EntityKindAssignment targets resource assignment records.
	EntityKindAssignment EntityKind = "assignment"
)

// ErrInvalidEntityKind indicates an unknown entity kind.
var ErrInvalidEntityKind = apperrors.New(apperrors.CodeDeltaInvalidKind, "entity kind is invalid")

// ParseEntityKind maps a stored string to an EntityKind.
func ParseEntityKind(value string) (EntityKind, error) {
	switch EntityKind(value) {
	case EntityKindProject, EntityKindAssignment:
		return EntityKind(value), nil
	default:
		return "", ErrInvalidEntityKind
	}
}

// Payload is the closed set of entity snapshots a delta can carry.
// Only Project and Assignment are scenario-sensitive.
type Payload interface {
	Kind() EntityKind
	PayloadID() string
	isPayload()
}

// Project is a full field snapshot of one project.
type Project struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Priority         int    `json:"priority"`
	Description      string `json:"description,omitempty"`
	IncludeInDemand  bool   `json:"include_in_demand"`
	AspirationStart  string `json:"aspiration_start,omitempty"`
	AspirationFinish string `json:"aspiration_finish,omitempty"`
}

// Kind implements Payload.
func (Project) Kind() EntityKind { return EntityKindProject }

// PayloadID implements Payload.
func (p Project) PayloadID() string { return p.ID }

func (Project) isPayload() {}

// Assignment is a full field snapshot of one resource assignment.
type Assignment struct {
	ID                   string  `json:"id"`
	ProjectID            string  `json:"project_id"`
	PersonID             string  `json:"person_id"`
	RoleID               string  `json:"role_id,omitempty"`
	AllocationPercentage float64 `json:"allocation_percentage"`
	StartDate            string  `json:"start_date,omitempty"`
	EndDate              string  `json:"end_date,omitempty"`
	Notes                string  `json:"notes,omitempty"`
}

// Kind implements Payload.
func (Assignment) Kind() EntityKind { return EntityKindAssignment }

// PayloadID implements Payload.
func (a Assignment) PayloadID() string { return a.ID }

func (Assignment) isPayload() {}
