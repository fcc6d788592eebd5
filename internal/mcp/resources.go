package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// conduit://services — list of all configured database services
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"conduit://services",
			"Configured Database Services",
			mcp.WithResourceDescription(
				"List of all database services configured in Conduit, "+
					"including their driver type and active status.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleServicesResource,
	)

	// -------------------------------------------------------------------
	// conduit://endpoint/{name} — full declaration of an endpoint (template)
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"conduit://endpoint/{name}",
			"Endpoint Declaration",
			mcp.WithTemplateDescription(
				"Full declaration of a query or batch endpoint: the SQL "+
					"template and parameter conditions for query endpoints, or "+
					"the target table and field mappings for batch endpoints.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleEndpointResource,
	)
}

// handleServicesResource returns a JSON list of all configured services.
func (s *MCPServer) handleServicesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	services, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	type serviceInfo struct {
		Name     string `json:"name"`
		Label    string `json:"label,omitempty"`
		Driver   string `json:"driver"`
		IsActive bool   `json:"is_active"`
	}

	items := make([]serviceInfo, len(services))
	for i, svc := range services {
		items[i] = serviceInfo{
			Name:     svc.Name,
			Label:    svc.Label,
			Driver:   svc.Driver,
			IsActive: svc.IsActive,
		}
	}

	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal services: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "conduit://services",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// handleEndpointResource returns the declaration of a named endpoint. Query
// endpoints are checked first, then batch endpoints.
func (s *MCPServer) handleEndpointResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	// Extract endpoint name from URI: "conduit://endpoint/{name}"
	uri := request.Params.URI
	name := strings.TrimPrefix(uri, "conduit://endpoint/")
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid endpoint URI %q: expected conduit://endpoint/{name}", uri)
	}

	var declaration interface{}
	if qep, err := s.store.GetQueryEndpoint(ctx, name); err == nil {
		declaration = map[string]interface{}{
			"kind":     "query",
			"endpoint": qep,
		}
	} else if bep, err := s.store.GetBatchEndpoint(ctx, name); err == nil {
		declaration = map[string]interface{}{
			"kind":     "batch",
			"endpoint": bep,
		}
	} else {
		return nil, fmt.Errorf("endpoint %q not found", name)
	}

	b, err := json.MarshalIndent(declaration, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal endpoint: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
