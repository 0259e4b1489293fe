package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/steiner385/capacinator/internal/platform/errors"
	"github.com/steiner385/capacinator/internal/platform/id"
)

// ScenarioType describes how a scenario relates to the plan tree.
type ScenarioType string

const (
	// ScenarioTypeBaseline is a tree root holding the shared plan of record.
	ScenarioTypeBaseline ScenarioType = "baseline"
	// ScenarioTypeBranch is a what-if plan layered over a parent scenario.
	ScenarioTypeBranch ScenarioType = "branch"
	// ScenarioTypeSandbox is a throwaway branch for exploratory edits.
	ScenarioTypeSandbox ScenarioType = "sandbox"
)

// ScenarioStatus describes the lifecycle state of a scenario.
type ScenarioStatus string

const (
	// ScenarioStatusDraft marks a scenario still being shaped.
	ScenarioStatusDraft ScenarioStatus = "draft"
	// ScenarioStatusActive marks a scenario in active planning use.
	ScenarioStatusActive ScenarioStatus = "active"
	// ScenarioStatusArchived marks a scenario kept for reference only.
	ScenarioStatusArchived ScenarioStatus = "archived"
)

var (
	// ErrScenarioNameEmpty indicates a missing scenario name.
	ErrScenarioNameEmpty = apperrors.New(apperrors.CodeScenarioNameEmpty, "scenario name is required")
	// ErrScenarioInvalidType indicates a missing or unknown scenario type.
	ErrScenarioInvalidType = apperrors.New(apperrors.CodeScenarioInvalidType, "scenario type is invalid")
	// ErrScenarioInvalidStatus indicates an unknown scenario status.
	ErrScenarioInvalidStatus = apperrors.New(apperrors.CodeScenarioInvalidStatus, "scenario status is invalid")
	// ErrScenarioBaselineHasParent indicates a baseline scenario with a parent link.
	ErrScenarioBaselineHasParent = apperrors.New(apperrors.CodeScenarioBaselineHasParent, "baseline scenario must not have a parent")
	// ErrScenarioParentRequired indicates a non-baseline scenario without a parent.
	ErrScenarioParentRequired = apperrors.New(apperrors.CodeScenarioParentRequired, "non-baseline scenario requires a parent")
)

// Scenario is one node in the plan tree. Its tree position is fixed at
// creation; re-parenting is not supported.
type Scenario struct {
	ID        string
	Name      string
	Type      ScenarioType
	Status    ScenarioStatus
	ParentID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBaseline reports whether this scenario is a tree root.
func (s Scenario) IsBaseline() bool {
	return s.Type == ScenarioTypeBaseline
}

// CreateScenarioInput describes the metadata needed to create a scenario.
type CreateScenarioInput struct {
	Name     string
	Type     ScenarioType
	Status   ScenarioStatus
	ParentID string
}

// CreateScenario creates a new scenario with a generated ID and timestamps.
func CreateScenario(input CreateScenarioInput, now func() time.Time, idGenerator func() (string, error)) (Scenario, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateScenarioInput(input)
	if err != nil {
		return Scenario{}, err
	}

	scenarioID, err := idGenerator()
	if err != nil {
		return Scenario{}, fmt.Errorf("generate scenario id: %w", err)
	}

	createdAt := now().UTC()
	return Scenario{
		ID:        scenarioID,
		Name:      normalized.Name,
		Type:      normalized.Type,
		Status:    normalized.Status,
		ParentID:  normalized.ParentID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeCreateScenarioInput trims and validates scenario input metadata.
// Parent links are checked against the forest invariant: baselines carry no
// parent, every other scenario carries exactly one.
func NormalizeCreateScenarioInput(input CreateScenarioInput) (CreateScenarioInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.ParentID = strings.TrimSpace(input.ParentID)
	if input.Name == "" {
		return CreateScenarioInput{}, ErrScenarioNameEmpty
	}

	switch input.Type {
	case ScenarioTypeBaseline:
		if input.ParentID != "" {
			return CreateScenarioInput{}, ErrScenarioBaselineHasParent
		}
	case ScenarioTypeBranch, ScenarioTypeSandbox:
		if input.ParentID == "" {
			return CreateScenarioInput{}, ErrScenarioParentRequired
		}
	default:
		return CreateScenarioInput{}, ErrScenarioInvalidType
	}

	if input.Status == "" {
		input.Status = ScenarioStatusDraft
	}
	switch input.Status {
	case ScenarioStatusDraft, ScenarioStatusActive, ScenarioStatusArchived:
	default:
		return CreateScenarioInput{}, ErrScenarioInvalidStatus
	}

	return input, nil
}

// ParseScenarioType maps a stored string to a ScenarioType.
func ParseScenarioType(value string) (ScenarioType, error) {
	switch ScenarioType(value) {
	case ScenarioTypeBaseline, ScenarioTypeBranch, ScenarioTypeSandbox:
		return ScenarioType(value), nil
	default:
		return "", ErrScenarioInvalidType
	}
}

// ParseScenarioStatus maps a stored string to a ScenarioStatus.
func ParseScenarioStatus(value string) (ScenarioStatus, error) {
	switch ScenarioStatus(value) {
	case ScenarioStatusDraft, ScenarioStatusActive, ScenarioStatusArchived:
		return ScenarioStatus(value), nil
	default:
		return "", ErrScenarioInvalidStatus
	}
}
