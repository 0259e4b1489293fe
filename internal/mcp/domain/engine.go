// Package domain defines the MCP tool and resource surface of the scenario
// engine.
package domain

import (
	"context"
	"time"

	"github.com/steiner385/capacinator/internal/scenario/diff"
	scenario "github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/resolve"
	"github.com/steiner385/capacinator/internal/scenario/storage"
)

// Engine is the scenario service surface the MCP handlers call.
type Engine interface {
	CreateScenario(ctx context.Context, input scenario.CreateScenarioInput) (scenario.Scenario, error)
	GetScenario(ctx context.Context, scenarioID string) (scenario.Scenario, error)
	ListScenarios(ctx context.Context, query storage.ScenarioQuery) (storage.ScenarioPage, error)
	PutDelta(ctx context.Context, record scenario.Record, expected *time.Time) (scenario.Record, error)
	DeleteDelta(ctx context.Context, scenarioID string, kind scenario.EntityKind, entityID string) error
	GetDeltas(ctx context.Context, scenarioID string) ([]scenario.Record, error)
	Resolve(ctx context.Context, scenarioID string) (resolve.State, error)
	Compare(ctx context.Context, fromID, toID string) (diff.Diff, error)
	ApplyToParent(ctx context.Context, scenarioID string) (int, error)
}
