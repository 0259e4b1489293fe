package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	scenario "github.com/steiner385/capacinator/internal/scenario/domain"
)

// DeltaPutInput represents the MCP tool input for writing one scenario edit.
type DeltaPutInput struct {
	ScenarioID        string         `json:"scenario_id" jsonschema:"owning scenario identifier"`
	EntityKind        string         `json:"entity_kind" jsonschema:"entity kind (project, assignment)"`
	EntityID          string         `json:"entity_id" jsonschema:"target entity identifier"`
	Operation         string         `json:"operation" jsonschema:"delta operation (ADD, OVERRIDE, REMOVE)"`
	Payload           map[string]any `json:"payload,omitempty" jsonschema:"full entity snapshot, required for ADD and OVERRIDE"`
	ExpectedUpdatedAt string         `json:"expected_updated_at,omitempty" jsonschema:"RFC3339 timestamp of the last read; mismatches fail as conflicts"`
}

// DeltaPutResult represents the MCP tool output for a stored scenario edit.
type DeltaPutResult struct {
	ScenarioID string `json:"scenario_id" jsonschema:"owning scenario identifier"`
	EntityKind string `json:"entity_kind" jsonschema:"entity kind"`
	EntityID   string `json:"entity_id" jsonschema:"target entity identifier"`
	Operation  string `json:"operation" jsonschema:"stored delta operation"`
	UpdatedAt  string `json:"updated_at" jsonschema:"write time, RFC3339"`
}

// DeltaDeleteInput represents the MCP tool input for reverting one edit.
type DeltaDeleteInput struct {
	ScenarioID string `json:"scenario_id" jsonschema:"owning scenario identifier"`
	EntityKind string `json:"entity_kind" jsonschema:"entity kind (project, assignment)"`
	EntityID   string `json:"entity_id" jsonschema:"target entity identifier"`
}

// DeltaDeleteResult represents the MCP tool output for a reverted edit.
type DeltaDeleteResult struct {
	ScenarioID string `json:"scenario_id" jsonschema:"owning scenario identifier"`
	EntityID   string `json:"entity_id" jsonschema:"target entity identifier"`
	Reverted   bool   `json:"reverted" jsonschema:"whether the revert was accepted"`
}

// DeltaPutTool defines the MCP tool schema for writing scenario edits.
func DeltaPutTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_put_delta",
		Description: "Stores one scenario edit: ADD or OVERRIDE with a full entity snapshot, or REMOVE to tombstone an inherited entity",
	}
}

// DeltaDeleteTool defines the MCP tool schema for reverting scenario edits.
func DeltaDeleteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_delete_delta",
		Description: "Reverts one scenario edit so the entity falls back to whatever the ancestors provide",
	}
}

// DeltaPutHandler executes a delta write request.
func DeltaPutHandler(engine Engine) mcp.ToolHandlerFor[DeltaPutInput, DeltaPutResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeltaPutInput) (*mcp.CallToolResult, DeltaPutResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		kind, err := scenario.ParseEntityKind(input.EntityKind)
		if err != nil {
			return nil, DeltaPutResult{}, fmt.Errorf("delta put failed: %w", err)
		}
		op, err := decodeOperation(kind, input.Operation, input.Payload)
		if err != nil {
			return nil, DeltaPutResult{}, fmt.Errorf("delta put failed: %w", err)
		}

		var expected *time.Time
		if input.ExpectedUpdatedAt != "" {
			parsed, err := time.Parse(time.RFC3339Nano, input.ExpectedUpdatedAt)
			if err != nil {
				return nil, DeltaPutResult{}, fmt.Errorf("delta put failed: parse expected_updated_at: %w", err)
			}
			expected = &parsed
		}

		stored, err := engine.PutDelta(runCtx, scenario.Record{
			ScenarioID: input.ScenarioID,
			EntityKind: kind,
			EntityID:   input.EntityID,
			Op:         op,
		}, expected)
		if err != nil {
			return nil, DeltaPutResult{}, fmt.Errorf("delta put failed: %w", err)
		}

		// Sub-second precision must survive the round trip: the store compares
		// expected timestamps at millisecond granularity.
		return nil, DeltaPutResult{
			ScenarioID: stored.ScenarioID,
			EntityKind: string(stored.EntityKind),
			EntityID:   stored.EntityID,
			Operation:  scenario.OperationName(stored.Op),
			UpdatedAt:  stored.UpdatedAt.Format(time.RFC3339Nano),
		}, nil
	}
}

// DeltaDeleteHandler executes a delta revert request.
func DeltaDeleteHandler(engine Engine) mcp.ToolHandlerFor[DeltaDeleteInput, DeltaDeleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeltaDeleteInput) (*mcp.CallToolResult, DeltaDeleteResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		kind, err := scenario.ParseEntityKind(input.EntityKind)
		if err != nil {
			return nil, DeltaDeleteResult{}, fmt.Errorf("delta delete failed: %w", err)
		}
		if err := engine.DeleteDelta(runCtx, input.ScenarioID, kind, input.EntityID); err != nil {
			return nil, DeltaDeleteResult{}, fmt.Errorf("delta delete failed: %w", err)
		}
		return nil, DeltaDeleteResult{
			ScenarioID: input.ScenarioID,
			EntityID:   input.EntityID,
			Reverted:   true,
		}, nil
	}
}

// decodeOperation assembles the operation sum type from its wire parts. The
// snapshot map round-trips through JSON into the typed entity.
func decodeOperation(kind scenario.EntityKind, opName string, snapshot map[string]any) (scenario.Operation, error) {
	if opName == scenario.OpNameRemove {
		return scenario.Remove{}, nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var payload scenario.Payload
	switch kind {
	case scenario.EntityKindProject:
		var project scenario.Project
		if err := json.Unmarshal(data, &project); err != nil {
			return nil, fmt.Errorf("unmarshal project payload: %w", err)
		}
		payload = project
	case scenario.EntityKindAssignment:
		var assignment scenario.Assignment
		if err := json.Unmarshal(data, &assignment); err != nil {
			return nil, fmt.Errorf("unmarshal assignment payload: %w", err)
		}
		payload = assignment
	default:
		return nil, scenario.ErrInvalidEntityKind
	}

	switch opName {
	case scenario.OpNameAdd:
		return scenario.Add{Payload: payload}, nil
	case scenario.OpNameOverride:
		return scenario.Override{Payload: payload}, nil
	default:
		return nil, fmt.Errorf("operation %q is not supported", opName)
	}
}
