package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/conduitdb/conduit/internal/record"
)

// endpointName extracts the required "endpoint" argument every Conduit tool
// keys on.
func endpointName(request mcp.CallToolRequest) (string, error) {
	name, err := request.RequireString("endpoint")
	if err != nil {
		return "", fmt.Errorf("missing required parameter %q", "endpoint")
	}
	return name, nil
}

// recordArg returns an object argument as a Record. A missing or non-object
// argument is a nil Record, which downstream treats as "no fields provided".
func recordArg(request mcp.CallToolRequest, key string) record.Record {
	raw, ok := request.GetArguments()[key]
	if !ok {
		return nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	return record.Record(m)
}

// recordsArg returns an array argument as a Record slice. Nil means the
// argument was missing, not an array, or contained a non-object element;
// the batch tool turns that into a self-correction hint.
func recordsArg(request mcp.CallToolRequest, key string) []record.Record {
	raw, ok := request.GetArguments()[key]
	if !ok {
		return nil
	}
	slice, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	records := make([]record.Record, 0, len(slice))
	for _, item := range slice {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil
		}
		records = append(records, record.Record(m))
	}
	return records
}

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the LLM so it can self-correct; they do NOT terminate the MCP
// session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}
