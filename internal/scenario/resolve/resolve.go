// Package resolve folds a scenario's ancestor chain into its effective state.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/steiner385/capacinator/internal/platform/errors"
	"github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/storage"
)

// DefaultMaxDepth bounds ancestor chains. Real plan trees are a handful of
// levels deep; anything near this limit indicates corrupted tree data.
const DefaultMaxDepth = 64

var (
	// ErrUnknownScenario indicates a scenario id with no stored row.
	ErrUnknownScenario = apperrors.New(apperrors.CodeScenarioNotFound, "scenario does not exist")
	// ErrCycleDetected indicates a parent chain that revisits a scenario.
	// The tree invariant makes this unreachable through normal writes, so it
	// is treated as fatal rather than retryable.
	ErrCycleDetected = apperrors.New(apperrors.CodeScenarioCycleDetected, "scenario parent chain contains a cycle")
	// ErrDepthExceeded indicates a parent chain longer than the configured bound.
	ErrDepthExceeded = apperrors.New(apperrors.CodeScenarioDepthExceeded, "scenario parent chain exceeds maximum depth")
)

// Store is the subset of scenario storage that resolution reads.
type Store interface {
	GetScenario(ctx context.Context, id string) (domain.Scenario, error)
	GetDeltas(ctx context.Context, scenarioID string) ([]domain.Record, error)
}

// Resolved is one effective entity value with its provenance: the scenario
// whose delta most recently contributed the value.
type Resolved[T any] struct {
	Value      T
	ScenarioID string
	UpdatedAt  time.Time
}

// State is the effective entity state of one scenario. It is recomputed per
// resolution call and never persisted.
type State struct {
	ScenarioID  string
	Projects    map[string]Resolved[domain.Project]
	Assignments map[string]Resolved[domain.Assignment]
}

// NewState returns an empty effective state for a scenario.
func NewState(scenarioID string) State {
	return State{
		ScenarioID:  scenarioID,
		Projects:    make(map[string]Resolved[domain.Project]),
		Assignments: make(map[string]Resolved[domain.Assignment]),
	}
}

// Clone returns an independent copy of the state. Entity values are plain
// structs, so a shallow map copy is a full copy.
func (s State) Clone() State {
	clone := NewState(s.ScenarioID)
	for id, entry := range s.Projects {
		clone.Projects[id] = entry
	}
	for id, entry := range s.Assignments {
		clone.Assignments[id] = entry
	}
	return clone
}

// Resolver computes effective scenario state by folding ancestor deltas.
// Resolution is a pure read: it never mutates stored records and is safe to
// run concurrently against a stable store.
type Resolver struct {
	store    Store
	maxDepth int
}

// New creates a Resolver. A non-positive maxDepth falls back to DefaultMaxDepth.
func New(store Store, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{store: store, maxDepth: maxDepth}
}

// Resolve folds the ancestor chain of scenarioID, root first, into the
// scenario's effective entity state.
func (r *Resolver) Resolve(ctx context.Context, scenarioID string) (State, error) {
	chain, err := r.Chain(ctx, scenarioID)
	if err != nil {
		return State{}, err
	}
	return r.resolveChain(ctx, scenarioID, chain)
}

// Chain returns the scenario's ancestor path ordered root to target. The walk
// is an explicit loop with a visited set and a depth bound so a corrupted
// tree cannot recurse unboundedly.
func (r *Resolver) Chain(ctx context.Context, scenarioID string) ([]domain.Scenario, error) {
	visited := make(map[string]struct{}, 8)
	var chain []domain.Scenario

	current := scenarioID
	for current != "" {
		if _, seen := visited[current]; seen {
			return nil, apperrors.WithMetadata(apperrors.CodeScenarioCycleDetected,
				"scenario parent chain contains a cycle",
				map[string]string{"scenario_id": scenarioID, "revisited_id": current})
		}
		if len(chain) >= r.maxDepth {
			return nil, apperrors.WithMetadata(apperrors.CodeScenarioDepthExceeded,
				"scenario parent chain exceeds maximum depth",
				map[string]string{"scenario_id": scenarioID, "max_depth": fmt.Sprintf("%d", r.maxDepth)})
		}
		visited[current] = struct{}{}

		scenario, err := r.store.GetScenario(ctx, current)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.WithMetadata(apperrors.CodeScenarioNotFound,
				"scenario does not exist",
				map[string]string{"scenario_id": current})
		}
		if err != nil {
			return nil, fmt.Errorf("load scenario %s: %w", current, err)
		}

		chain = append(chain, scenario)
		current = scenario.ParentID
	}

	// Reverse into root-to-target order so later scenarios win the fold.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// resolveChain folds deltas along an already-computed chain. Each scenario
// owns at most one record per entity, so the result is independent of the
// store's iteration order within a scenario.
func (r *Resolver) resolveChain(ctx context.Context, scenarioID string, chain []domain.Scenario) (State, error) {
	state := NewState(scenarioID)
	for _, scenario := range chain {
		records, err := r.store.GetDeltas(ctx, scenario.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return State{}, apperrors.WithMetadata(apperrors.CodeScenarioNotFound,
				"scenario does not exist",
				map[string]string{"scenario_id": scenario.ID})
		}
		if err != nil {
			return State{}, fmt.Errorf("load deltas for %s: %w", scenario.ID, err)
		}
		for _, record := range records {
			applyRecord(&state, record)
		}
	}
	return state, nil
}

// applyRecord folds one delta into the accumulating state. ADD and OVERRIDE
// both install the snapshot; REMOVE tombstones whatever an ancestor
// contributed for the entity.
func applyRecord(state *State, record domain.Record) {
	switch record.Op.(type) {
	case domain.Add, domain.Override:
		payload, ok := domain.OperationPayload(record.Op)
		if !ok {
			return
		}
		switch value := payload.(type) {
		case domain.Project:
			state.Projects[record.EntityID] = Resolved[domain.Project]{
				Value:      value,
				ScenarioID: record.ScenarioID,
				UpdatedAt:  record.UpdatedAt,
			}
		case domain.Assignment:
			state.Assignments[record.EntityID] = Resolved[domain.Assignment]{
				Value:      value,
				ScenarioID: record.ScenarioID,
				UpdatedAt:  record.UpdatedAt,
			}
		}
	case domain.Remove:
		switch record.EntityKind {
		case domain.EntityKindProject:
			delete(state.Projects, record.EntityID)
		case domain.EntityKindAssignment:
			delete(state.Assignments, record.EntityID)
		}
	}
}
