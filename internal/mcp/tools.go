package mcp

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/conduitdb/conduit/internal/query"
	"github.com/conduitdb/conduit/internal/upsert"
)

// registerTools registers all Conduit MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery tools -----

	srv.AddTool(
		mcp.NewTool("conduit_list_services",
			mcp.WithDescription(
				"List all database services configured in Conduit. Returns each "+
					"service's name, driver type, and active status. Use this to see "+
					"which databases the declared endpoints run against.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListServices,
	)

	srv.AddTool(
		mcp.NewTool("conduit_list_endpoints",
			mcp.WithDescription(
				"List all declared endpoints: query endpoints (conditional reads) "+
					"and batch endpoints (bulk upserts). For each query endpoint the "+
					"accepted filter parameters are listed; for each batch endpoint "+
					"the accepted record fields, required fields, and key fields. "+
					"Use this first to discover what can be invoked.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListEndpoints,
	)

	// ----- Query tool -----

	srv.AddTool(
		mcp.NewTool("conduit_query",
			mcp.WithDescription(
				"Execute a declared query endpoint. Filter parameters are matched "+
					"case-insensitively against the endpoint's declared conditions; "+
					"absent parameters simply contribute no filter (or their declared "+
					"absent-branch clause). Returns the matching records as JSON.\n\n"+
					"Use conduit_list_endpoints to see each endpoint's parameters.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("endpoint",
				mcp.Required(),
				mcp.Description("Name of the declared query endpoint"),
			),
			mcp.WithObject("parameters",
				mcp.Description("Filter parameters as an object (e.g. {\"Status\": \"active\"}). Omit for an unfiltered read."),
			),
		),
		s.handleQuery,
	)

	// ----- Batch tool -----

	srv.AddTool(
		mcp.NewTool("conduit_batch",
			mcp.WithDescription(
				"Submit a batch of records to a declared batch endpoint. Each record "+
					"is routed to insert or update based on a bulk existence check over "+
					"the endpoint's key fields. Returns inserted/updated/error counts "+
					"with per-record error details.\n\n"+
					"Use conduit_list_endpoints to see each endpoint's fields.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("endpoint",
				mcp.Required(),
				mcp.Description("Name of the declared batch endpoint"),
			),
			mcp.WithArray("records",
				mcp.Required(),
				mcp.Description("Array of record objects to upsert (e.g. [{\"CustomerId\": 1, \"Region\": \"EU\"}])"),
			),
		),
		s.handleBatch,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

// handleListServices returns all configured database services.
func (s *MCPServer) handleListServices(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	services, err := s.store.ListServices(ctx)
	if err != nil {
		return toolError("Failed to list services: %v", err)
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

	return successJSON(items)
}

// handleListEndpoints returns the declared query and batch endpoints with
// their accepted parameters and fields.
func (s *MCPServer) handleListEndpoints(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	queryEPs, err := s.store.ListQueryEndpoints(ctx)
	if err != nil {
		return toolError("Failed to list query endpoints: %v", err)
	}
	batchEPs, err := s.store.ListBatchEndpoints(ctx)
	if err != nil {
		return toolError("Failed to list batch endpoints: %v", err)
	}

	type queryInfo struct {
		Name       string   `json:"name"`
		Service    string   `json:"service"`
		Parameters []string `json:"parameters"`
	}
	type batchInfo struct {
		Name         string   `json:"name"`
		Service      string   `json:"service"`
		Table        string   `json:"table"`
		Fields       []string `json:"fields"`
		Required     []string `json:"required_fields"`
		Keys         []string `json:"key_fields"`
		AllowUpdates bool     `json:"allow_updates"`
		MaxBatchSize int      `json:"max_batch_size,omitempty"`
	}

	queries := make([]queryInfo, len(queryEPs))
	for i, ep := range queryEPs {
		params := make([]string, len(ep.Conditions))
		for j, c := range ep.Conditions {
			params[j] = c.Name
		}
		queries[i] = queryInfo{
			Name:       ep.Name,
			Service:    ep.Service,
			Parameters: params,
		}
	}

	batches := make([]batchInfo, len(batchEPs))
	for i, ep := range batchEPs {
		info := batchInfo{
			Name:         ep.Name,
			Service:      ep.Service,
			Table:        ep.Table,
			AllowUpdates: ep.AllowUpdates,
			MaxBatchSize: ep.MaxBatchSize,
		}
		for _, m := range ep.Mappings {
			info.Fields = append(info.Fields, m.RequestField)
			if m.Required {
				info.Required = append(info.Required, m.RequestField)
			}
			if m.IsKey {
				info.Keys = append(info.Keys, m.RequestField)
			}
		}
		batches[i] = info
	}

	return successJSON(map[string]interface{}{
		"query_endpoints": queries,
		"batch_endpoints": batches,
	})
}

// handleQuery executes a declared query endpoint with the given parameters.
func (s *MCPServer) handleQuery(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	name, err := endpointName(request)
	if err != nil {
		return toolError("%v. Use conduit_list_endpoints to discover endpoint names.", err)
	}

	ep, err := s.store.GetQueryEndpoint(ctx, name)
	if err != nil {
		return toolError("Query endpoint %q not found. Use conduit_list_endpoints to discover endpoint names.", name)
	}

	conn, err := s.registry.Get(ep.Service)
	if err != nil {
		return toolError("Service %q backing endpoint %q is not connected.", ep.Service, name)
	}

	builder, err := query.NewConditionalBuilder(ep.Template, ep.DefaultWhere, ep.Conditions, ep.Mappings)
	if err != nil {
		s.logger.Error("invalid endpoint declaration", "endpoint", name, "error", err)
		return toolError("Endpoint %q has an invalid declaration.", name)
	}

	built := builder.Build(recordArg(request, "parameters"))

	q, args, err := sqlx.Named(built.SQL, built.Params)
	if err != nil {
		return toolError("Failed to bind parameters: %v", err)
	}
	q = sqlx.Rebind(conn.Dialect.BindType, q)

	rows, err := conn.DB.QueryxContext(ctx, q, args...)
	if err != nil {
		s.logger.Error("query endpoint failed", "endpoint", name, "error", err)
		return toolError("Query execution failed for endpoint %q.", name)
	}
	defer rows.Close()

	records := make([]map[string]interface{}, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return toolError("Failed to scan row: %v", err)
		}
		cleanMapValues(row)
		records = append(records, row)
	}
	if err := rows.Err(); err != nil {
		return toolError("Row iteration error: %v", err)
	}

	return successJSON(map[string]interface{}{
		"Result":             "OK",
		"ProvidedParameters": strings.Join(built.Provided, ", "),
		"Records":            records,
	})
}

// handleBatch submits a batch of records to a declared batch endpoint.
func (s *MCPServer) handleBatch(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	name, err := endpointName(request)
	if err != nil {
		return toolError("%v. Use conduit_list_endpoints to discover endpoint names.", err)
	}

	ep, err := s.store.GetBatchEndpoint(ctx, name)
	if err != nil {
		return toolError("Batch endpoint %q not found. Use conduit_list_endpoints to discover endpoint names.", name)
	}

	conn, err := s.registry.Get(ep.Service)
	if err != nil {
		return toolError("Service %q backing endpoint %q is not connected.", ep.Service, name)
	}

	records := recordsArg(request, "records")
	if len(records) == 0 {
		return toolError("No records provided. The 'records' parameter must be an array "+
			"of objects, e.g. [{\"CustomerId\": 1, \"Region\": \"EU\"}]. "+
			"Endpoint %q accepts the fields listed by conduit_list_endpoints.", name)
	}

	engine, err := upsert.New(upsert.Config{
		Table:        ep.Table,
		Mappings:     ep.Mappings,
		AllowUpdates: ep.AllowUpdates,
		MaxBatchSize: ep.MaxBatchSize,
		Logger:       s.logger,
	})
	if err != nil {
		s.logger.Error("invalid endpoint declaration", "endpoint", name, "error", err)
		return toolError("Endpoint %q has an invalid declaration.", name)
	}

	result, err := engine.Execute(ctx, conn, records)
	if err != nil {
		return toolError("Batch rejected: %v", err)
	}

	details := result.ErrorDetails
	if details == nil {
		details = []string{}
	}
	return successJSON(map[string]interface{}{
		"Result":       result.Status,
		"Inserted":     result.Inserted,
		"Updated":      result.Updated,
		"Errors":       result.Errors,
		"ErrorDetails": details,
	})
}

// cleanMapValues converts []byte values from database scans into strings
// for clean JSON serialization.
func cleanMapValues(m map[string]interface{}) {
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
}
