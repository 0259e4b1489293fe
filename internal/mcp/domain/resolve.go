package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/steiner385/capacinator/internal/scenario/diff"
	scenario "github.com/steiner385/capacinator/internal/scenario/domain"
)

// ResolveInput represents the MCP tool input for scenario resolution.
type ResolveInput struct {
	ScenarioID string `json:"scenario_id" jsonschema:"scenario to resolve"`
}

// ResolvedProject is one effective project with its provenance.
type ResolvedProject struct {
	Project          scenario.Project `json:"project"`
	SourceScenarioID string           `json:"source_scenario_id" jsonschema:"scenario whose delta contributed this value"`
	UpdatedAt        string           `json:"updated_at" jsonschema:"contributing delta write time, RFC3339"`
}

// ResolvedAssignment is one effective assignment with its provenance.
type ResolvedAssignment struct {
	Assignment       scenario.Assignment `json:"assignment"`
	SourceScenarioID string              `json:"source_scenario_id" jsonschema:"scenario whose delta contributed this value"`
	UpdatedAt        string              `json:"updated_at" jsonschema:"contributing delta write time, RFC3339"`
}

// ResolveResult represents the MCP tool output for scenario resolution.
type ResolveResult struct {
	ScenarioID  string               `json:"scenario_id" jsonschema:"resolved scenario"`
	Projects    []ResolvedProject    `json:"projects" jsonschema:"effective projects, sorted by id"`
	Assignments []ResolvedAssignment `json:"assignments" jsonschema:"effective assignments, sorted by id"`
}

// CompareInput represents the MCP tool input for scenario comparison.
type CompareInput struct {
	FromScenarioID string `json:"from_scenario_id" jsonschema:"comparison baseline scenario"`
	ToScenarioID   string `json:"to_scenario_id" jsonschema:"scenario compared against the baseline"`
}

// ApplyInput represents the MCP tool input for applying a scenario to its parent.
type ApplyInput struct {
	ScenarioID string `json:"scenario_id" jsonschema:"child scenario whose edits merge into its parent"`
}

// ApplyResult represents the MCP tool output for an apply.
type ApplyResult struct {
	ScenarioID    string `json:"scenario_id" jsonschema:"child scenario"`
	AppliedDeltas int    `json:"applied_deltas" jsonschema:"number of edits merged into the parent"`
}

// ResolveTool defines the MCP tool schema for scenario resolution.
func ResolveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_resolve",
		Description: "Computes a scenario's effective entity state by folding its ancestor chain",
	}
}

// CompareTool defines the MCP tool schema for scenario comparison.
func CompareTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_compare",
		Description: "Itemizes entity differences between the resolved states of two scenarios",
	}
}

// ApplyTool defines the MCP tool schema for apply-to-parent.
func ApplyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_apply_to_parent",
		Description: "Merges a scenario's edits into its parent and clears the scenario, all-or-nothing",
	}
}

// ResolveHandler executes a scenario resolution request.
func ResolveHandler(engine Engine) mcp.ToolHandlerFor[ResolveInput, ResolveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, ResolveResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		state, err := engine.Resolve(runCtx, input.ScenarioID)
		if err != nil {
			return nil, ResolveResult{}, fmt.Errorf("scenario resolve failed: %w", err)
		}

		result := ResolveResult{ScenarioID: state.ScenarioID}
		for _, id := range sortedKeys(state.Projects) {
			entry := state.Projects[id]
			result.Projects = append(result.Projects, ResolvedProject{
				Project:          entry.Value,
				SourceScenarioID: entry.ScenarioID,
				UpdatedAt:        entry.UpdatedAt.Format(time.RFC3339Nano),
			})
		}
		for _, id := range sortedKeys(state.Assignments) {
			entry := state.Assignments[id]
			result.Assignments = append(result.Assignments, ResolvedAssignment{
				Assignment:       entry.Value,
				SourceScenarioID: entry.ScenarioID,
				UpdatedAt:        entry.UpdatedAt.Format(time.RFC3339Nano),
			})
		}
		return nil, result, nil
	}
}

// CompareHandler executes a scenario comparison request.
func CompareHandler(engine Engine) mcp.ToolHandlerFor[CompareInput, diff.Diff] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CompareInput) (*mcp.CallToolResult, diff.Diff, error) {
		runCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		d, err := engine.Compare(runCtx, input.FromScenarioID, input.ToScenarioID)
		if err != nil {
			return nil, diff.Diff{}, fmt.Errorf("scenario compare failed: %w", err)
		}
		return nil, d, nil
	}
}

// ApplyHandler executes an apply-to-parent request.
func ApplyHandler(engine Engine) mcp.ToolHandlerFor[ApplyInput, ApplyResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ApplyInput) (*mcp.CallToolResult, ApplyResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		count, err := engine.ApplyToParent(runCtx, input.ScenarioID)
		if err != nil {
			return nil, ApplyResult{}, fmt.Errorf("scenario apply failed: %w", err)
		}
		return nil, ApplyResult{ScenarioID: input.ScenarioID, AppliedDeltas: count}, nil
	}
}

func sortedKeys[T any](entries map[string]T) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
