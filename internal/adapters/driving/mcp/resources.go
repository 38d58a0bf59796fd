package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for sercha-ingest resources.
	uriScheme = "sercha://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "ingestions",
		Name:        "ingestions",
		Description: "Lifecycle status of every configured provider",
		MIMEType:    "application/json",
	}, s.handleIngestionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "ingestions/{provider}",
		Name:        "ingestion",
		Description: "Lifecycle status of one provider",
		MIMEType:    "application/json",
	}, s.handleIngestionResource)
}

// handleIngestionsResource returns the status of all providers.
func (s *Server) handleIngestionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	statuses, err := s.ports.Ingestion.StatusAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ingestions: %w", err)
	}

	out := make([]IngestionOutput, len(statuses))
	for i := range statuses {
		out[i] = toIngestionOutput(statuses[i])
	}
	return jsonResult(req.Params.URI, out)
}

// handleIngestionResource returns the status of one provider.
func (s *Server) handleIngestionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract provider from URI: sercha://ingestions/{provider}
	provider := extractProvider(req.Params.URI)
	if provider == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	status, err := s.ports.Ingestion.Status(ctx, provider)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting ingestion: %w", err)
	}
	return jsonResult(req.Params.URI, toIngestionOutput(*status))
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling ingestions: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractProvider extracts the provider from a URI like sercha://ingestions/{provider}.
func extractProvider(uri string) string {
	const prefix = uriScheme + "ingestions/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	provider := strings.TrimPrefix(uri, prefix)
	if strings.Contains(provider, "/") {
		return ""
	}
	return provider
}
