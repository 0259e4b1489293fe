package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	scenario "github.com/steiner385/capacinator/internal/scenario/domain"
	"github.com/steiner385/capacinator/internal/scenario/storage"
)

// handlerTimeout bounds a single MCP tool or resource call.
const handlerTimeout = 5 * time.Second

// ScenarioCreateInput represents the MCP tool input for scenario creation.
type ScenarioCreateInput struct {
	Name     string `json:"name" jsonschema:"scenario name"`
	Type     string `json:"type" jsonschema:"scenario type (baseline, branch, sandbox)"`
	Status   string `json:"status,omitempty" jsonschema:"optional lifecycle status (draft, active, archived)"`
	ParentID string `json:"parent_id,omitempty" jsonschema:"parent scenario id, required for branch and sandbox"`
}

// ScenarioEntry represents one scenario metadata record.
type ScenarioEntry struct {
	ID        string `json:"id" jsonschema:"scenario identifier"`
	Name      string `json:"name" jsonschema:"scenario name"`
	Type      string `json:"type" jsonschema:"scenario type"`
	Status    string `json:"status" jsonschema:"lifecycle status"`
	ParentID  string `json:"parent_id,omitempty" jsonschema:"parent scenario id"`
	CreatedAt string `json:"created_at" jsonschema:"creation time, RFC3339"`
	UpdatedAt string `json:"updated_at" jsonschema:"last update time, RFC3339"`
}

// ScenarioListPayload represents the MCP resource payload for scenario listings.
type ScenarioListPayload struct {
	Scenarios     []ScenarioEntry `json:"scenarios"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// ScenarioCreateTool defines the MCP tool schema for creating scenarios.
func ScenarioCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_create",
		Description: "Creates a new scenario: a baseline tree root or a branch/sandbox layered over a parent",
	}
}

// ScenarioListResource defines the MCP resource for scenario listings.
func ScenarioListResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "scenario_list",
		Title:       "Scenarios",
		Description: "Readable listing of scenario metadata records",
		MIMEType:    "application/json",
		URI:         "scenarios://list",
	}
}

// ScenarioCreateHandler executes a scenario creation request.
func ScenarioCreateHandler(engine Engine) mcp.ToolHandlerFor[ScenarioCreateInput, ScenarioEntry] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ScenarioCreateInput) (*mcp.CallToolResult, ScenarioEntry, error) {
		runCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		created, err := engine.CreateScenario(runCtx, scenario.CreateScenarioInput{
			Name:     input.Name,
			Type:     scenario.ScenarioType(input.Type),
			Status:   scenario.ScenarioStatus(input.Status),
			ParentID: input.ParentID,
		})
		if err != nil {
			return nil, ScenarioEntry{}, fmt.Errorf("scenario create failed: %w", err)
		}
		return nil, scenarioEntry(created), nil
	}
}

// ScenarioListResourceHandler returns a readable scenario listing resource.
func ScenarioListResourceHandler(engine Engine) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if engine == nil {
			return nil, fmt.Errorf("scenario engine is not configured")
		}

		uri := ScenarioListResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		runCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		page, err := engine.ListScenarios(runCtx, storage.ScenarioQuery{PageSize: 50})
		if err != nil {
			return nil, fmt.Errorf("scenario list failed: %w", err)
		}

		payload := ScenarioListPayload{NextPageToken: page.NextPageToken}
		for _, item := range page.Scenarios {
			payload.Scenarios = append(payload.Scenarios, scenarioEntry(item))
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal scenario list: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

func scenarioEntry(s scenario.Scenario) ScenarioEntry {
	return ScenarioEntry{
		ID:        s.ID,
		Name:      s.Name,
		Type:      string(s.Type),
		Status:    string(s.Status),
		ParentID:  s.ParentID,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}
