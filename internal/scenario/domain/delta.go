package domain

import (
	"strings"
	"time"

	apperrors "github.com/steiner385/capacinator/internal/platform/errors"
)

var (
	// ErrDeltaEmptyScenarioID indicates a delta without an owning scenario.
	ErrDeltaEmptyScenarioID = apperrors.New(apperrors.CodeDeltaEmptyScenarioID, "delta scenario id is required")
	// ErrDeltaEmptyEntityID indicates a delta without a target entity.
	ErrDeltaEmptyEntityID = apperrors.New(apperrors.CodeDeltaEmptyEntityID, "delta entity id is required")
	// ErrDeltaMissingPayload indicates an ADD or OVERRIDE without a snapshot.
	ErrDeltaMissingPayload = apperrors.New(apperrors.CodeDeltaMissingPayload, "delta payload is required")
	// ErrDeltaKindMismatch indicates a payload that does not match the record's entity kind or id.
	ErrDeltaKindMismatch = apperrors.New(apperrors.CodeDeltaKindMismatch, "delta payload does not match entity")
)

// Operation is the closed set of edits a scenario can layer over its parent.
// REMOVE carries no payload by construction, so its absence never needs a
// runtime nil check.
type Operation interface {
	isOperation()
}

// Add introduces an entity that does not exist in any ancestor.
type Add struct {
	Payload Payload
}

func (Add) isOperation() {}

// Override replaces the full field snapshot of an inherited entity.
type Override struct {
	Payload Payload
}

func (Override) isOperation() {}

// Remove tombstones an inherited entity for this scenario and its descendants.
type Remove struct{}

func (Remove) isOperation() {}

// Operation names as persisted in storage.
const (
	OpNameAdd      = "ADD"
	OpNameOverride = "OVERRIDE"
	OpNameRemove   = "REMOVE"
)

// OperationName returns the persisted name for an operation.
func OperationName(op Operation) string {
	switch op.(type) {
	case Add:
		return OpNameAdd
	case Override:
		return OpNameOverride
	case Remove:
		return OpNameRemove
	default:
		return ""
	}
}

// OperationPayload returns the payload carried by ADD/OVERRIDE operations.
func OperationPayload(op Operation) (Payload, bool) {
	switch v := op.(type) {
	case Add:
		return v.Payload, v.Payload != nil
	case Override:
		return v.Payload, v.Payload != nil
	default:
		return nil, false
	}
}

// Record is the single stored delta for one (scenario, entity) pair.
// A later edit to the same pair overwrites this record in place; deltas keep
// no per-field history.
type Record struct {
	ScenarioID string
	EntityKind EntityKind
	EntityID   string
	Op         Operation
	UpdatedAt  time.Time
}

// NewRecord validates and assembles a delta record.
func NewRecord(scenarioID string, kind EntityKind, entityID string, op Operation, now func() time.Time) (Record, error) {
	if now == nil {
		now = time.Now
	}

	scenarioID = strings.TrimSpace(scenarioID)
	entityID = strings.TrimSpace(entityID)
	if scenarioID == "" {
		return Record{}, ErrDeltaEmptyScenarioID
	}
	if entityID == "" {
		return Record{}, ErrDeltaEmptyEntityID
	}
	if _, err := ParseEntityKind(string(kind)); err != nil {
		return Record{}, err
	}

	switch op.(type) {
	case Add, Override:
		payload, ok := OperationPayload(op)
		if !ok {
			return Record{}, ErrDeltaMissingPayload
		}
		if payload.Kind() != kind || payload.PayloadID() != entityID {
			return Record{}, ErrDeltaKindMismatch
		}
	case Remove:
	default:
		return Record{}, ErrDeltaMissingPayload
	}

	return Record{
		ScenarioID: scenarioID,
		EntityKind: kind,
		EntityID:   entityID,
		Op:         op,
		UpdatedAt:  now().UTC(),
	}, nil
}
