package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// StatusInput is the input schema for the ingestion_status tool.
type StatusInput struct {
	Provider string `json:"provider,omitempty" jsonschema:"provider to report; all providers when empty"`
}

// StatusOutput is the output schema for the ingestion_status tool.
type StatusOutput struct {
	Ingestions []IngestionOutput `json:"ingestions"`
	Count      int               `json:"count"`
}

// IngestionOutput represents one provider's lifecycle position.
type IngestionOutput struct {
	Provider     string `json:"provider"`
	IngestionID  string `json:"ingestion_id,omitempty"`
	NextAction   string `json:"next_action,omitempty"`
	State        string `json:"state,omitempty"`
	NextActionAt string `json:"next_action_at,omitempty"`
	Attempts     int    `json:"attempts"`
	LastError    string `json:"last_error,omitempty"`
	LastSequence int    `json:"last_sequence"`
}

// TickInput is the input schema for the ingestion_tick tool.
type TickInput struct {
	Provider string `json:"provider,omitempty" jsonschema:"provider to tick; all providers when empty"`
}

// TickOutput is the output schema for the ingestion_tick tool.
type TickOutput struct {
	Providers []string `json:"providers"`
	Scheduled bool     `json:"scheduled"`
}

// CancelInput is the input schema for the ingestion_cancel tool.
type CancelInput struct {
	Provider string `json:"provider" jsonschema:"provider whose active ingestion is canceled"`
	Reason   string `json:"reason,omitempty" jsonschema:"why the ingestion is canceled"`
}

// CancelOutput is the output schema for the ingestion_cancel tool.
type CancelOutput struct {
	Provider string `json:"provider"`
	Canceled bool   `json:"canceled"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingestion_status",
		Description: "Report where each provider's ingestion is in its ingest/rest/backoff/cancel cycle",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingestion_tick",
		Description: "Advance a provider's ingestion by one step, or every provider's when none is given",
	}, s.handleTick)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingestion_cancel",
		Description: "Cancel a provider's active ingestion so it restarts from the first page",
	}, s.handleCancel)
}

// handleStatus handles the ingestion_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	var statuses []driving.IngestionStatus
	if input.Provider != "" {
		status, err := s.ports.Ingestion.Status(ctx, input.Provider)
		if err != nil {
			return nil, StatusOutput{}, err
		}
		statuses = []driving.IngestionStatus{*status}
	} else {
		all, err := s.ports.Ingestion.StatusAll(ctx)
		if err != nil {
			return nil, StatusOutput{}, err
		}
		statuses = all
	}

	output := StatusOutput{
		Ingestions: make([]IngestionOutput, len(statuses)),
		Count:      len(statuses),
	}
	for i := range statuses {
		output.Ingestions[i] = toIngestionOutput(statuses[i])
	}
	return nil, output, nil
}

// handleTick handles the ingestion_tick tool invocation.
// With a scheduler the tick is queued; otherwise it runs before returning.
func (s *Server) handleTick(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TickInput,
) (*mcp.CallToolResult, TickOutput, error) {
	providers := s.ports.Ingestion.Providers()
	if input.Provider != "" {
		if !contains(providers, input.Provider) {
			return nil, TickOutput{}, fmt.Errorf("unknown provider %q", input.Provider)
		}
		providers = []string{input.Provider}
	}

	if s.ports.Scheduler != nil {
		for _, p := range providers {
			s.ports.Scheduler.Trigger(p)
		}
		return nil, TickOutput{Providers: providers, Scheduled: true}, nil
	}

	var err error
	if input.Provider != "" {
		err = s.ports.Ingestion.Tick(ctx, input.Provider)
	} else {
		err = s.ports.Ingestion.TickAll(ctx)
	}
	if err != nil {
		return nil, TickOutput{}, err
	}
	return nil, TickOutput{Providers: providers}, nil
}

// handleCancel handles the ingestion_cancel tool invocation.
func (s *Server) handleCancel(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CancelInput,
) (*mcp.CallToolResult, CancelOutput, error) {
	if input.Provider == "" {
		return nil, CancelOutput{}, fmt.Errorf("provider is required")
	}
	if err := s.ports.Ingestion.Cancel(ctx, input.Provider, input.Reason); err != nil {
		return nil, CancelOutput{}, err
	}
	return nil, CancelOutput{Provider: input.Provider, Canceled: true}, nil
}

func toIngestionOutput(st driving.IngestionStatus) IngestionOutput {
	out := IngestionOutput{
		Provider:     st.Provider,
		IngestionID:  st.IngestionID,
		NextAction:   st.NextAction,
		State:        st.State,
		Attempts:     st.Attempts,
		LastError:    st.LastError,
		LastSequence: st.LastSequence,
	}
	if !st.NextActionAt.IsZero() {
		out.NextActionAt = st.NextActionAt.UTC().Format(time.RFC3339)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
