// Package storage defines persistence contracts for scenario and delta state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/steiner385/capacinator/internal/scenario/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a delta changed since the caller last read it.
	ErrConflict = errors.New("record updated concurrently")
)

// ScenarioQuery selects a page of scenario rows.
type ScenarioQuery struct {
	// Filter is an optional AIP-160 expression over scenario fields.
	Filter    string
	PageSize  int
	PageToken string
}

// ScenarioPage holds one page of scenario rows.
type ScenarioPage struct {
	Scenarios     []domain.Scenario
	NextPageToken string
}

// ScenarioStore persists scenario tree nodes.
type ScenarioStore interface {
	PutScenario(ctx context.Context, scenario domain.Scenario) error
	GetScenario(ctx context.Context, id string) (domain.Scenario, error)
	ListScenarios(ctx context.Context, query ScenarioQuery) (ScenarioPage, error)
}

// DeltaStore persists per-scenario delta records. Each (scenario, entity
// kind, entity id) triple holds at most one record; writes overwrite in place.
type DeltaStore interface {
	// GetDeltas returns every delta owned by a scenario. It fails with
	// ErrNotFound when the scenario row itself does not exist.
	GetDeltas(ctx context.Context, scenarioID string) ([]domain.Record, error)

	// PutDelta upserts the single record for the record's (scenario, entity)
	// pair. When expected is non-nil the stored updated_at must match it or
	// the write fails with ErrConflict; this is the read-compare-write hook
	// callers use to detect lost updates.
	PutDelta(ctx context.Context, record domain.Record, expected *time.Time) error

	// DeleteDelta removes any record for the pair. Deleting an absent record
	// is not an error.
	DeleteDelta(ctx context.Context, scenarioID string, kind domain.EntityKind, entityID string) error

	// PushDeltasToParent copies every delta owned by child into parent and
	// clears the child's set, all inside one transaction. It returns the
	// number of records pushed.
	PushDeltasToParent(ctx context.Context, childID, parentID string) (int, error)

	// LatestDeltaUpdate returns the newest delta updated_at across the given
	// scenarios, or the zero time when none of them own deltas.
	LatestDeltaUpdate(ctx context.Context, scenarioIDs []string) (time.Time, error)
}

// Store combines the scenario and delta persistence contracts.
type Store interface {
	ScenarioStore
	DeltaStore
}
