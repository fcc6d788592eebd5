// Package openapi generates an OpenAPI 3.1 document describing the declared
// query and batch endpoints.
package openapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/conduitdb/conduit/internal/model"
)

// Generate builds the OpenAPI document for the given endpoint declarations.
func Generate(queryEndpoints []model.QueryEndpoint, batchEndpoints []model.BatchEndpoint, baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Conduit API",
			Description: "Declared query and batch upsert endpoints served by Conduit.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"bearerAuth": {}},
	}

	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()
	doc.Components.Schemas["ReadResponse"] = readResponseSchema()
	doc.Components.Schemas["BatchResponse"] = batchResponseSchema()

	doc.Paths = openapi3.NewPaths()

	for _, ep := range queryEndpoints {
		addQueryPath(doc, ep)
	}
	for _, ep := range batchEndpoints {
		addBatchPath(doc, ep)
	}

	return doc
}

// MarshalJSON renders a generated document as indented JSON.
func MarshalJSON(doc *openapi3.T) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// addQueryPath registers the POST path for one query endpoint. The request
// body schema lists the endpoint's condition fields, all optional.
func addQueryPath(doc *openapi3.T, ep model.QueryEndpoint) {
	props := openapi3.Schemas{}
	for _, cond := range ep.Conditions {
		props[cond.Name] = &openapi3.SchemaRef{
			Value: valueSchema(cond.DefaultValue,
				fmt.Sprintf("Optional filter parameter %q.", cond.Name)),
		}
	}

	reqSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
		},
	}

	op := &openapi3.Operation{
		Tags:        []string{ep.Name},
		Summary:     fmt.Sprintf("Run query endpoint %s", ep.Name),
		Description: fmt.Sprintf("Execute the declared query %s against service %s. Absent parameters fall back to their declared absent-branch behavior.", ep.Name, ep.Service),
		OperationID: "query_" + operationName(ep.Name),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: "Filter parameters, matched case-insensitively.",
				Required:    true,
				Content:     openapi3.NewContentWithJSONSchemaRef(reqSchema),
			},
		},
		Responses: newResponses("200", "Query result",
			openapi3.NewSchemaRef("#/components/schemas/ReadResponse", nil)),
	}

	doc.Paths.Set("/api/v1/query/"+ep.Name, &openapi3.PathItem{Post: op})
}

// addBatchPath registers the POST path for one batch endpoint. The record
// schema is derived from the endpoint's field mappings.
func addBatchPath(doc *openapi3.T, ep model.BatchEndpoint) {
	props := openapi3.Schemas{}
	var required []string
	for _, m := range ep.Mappings {
		desc := fmt.Sprintf("Stored as column %s.", m.StorageColumn)
		if m.IsKey {
			desc += " Part of the record key."
		}
		props[m.RequestField] = &openapi3.SchemaRef{
			Value: valueSchema(m.DefaultValue, desc),
		}
		if m.Required {
			required = append(required, m.RequestField)
		}
	}

	recordSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   required,
		},
	}

	reqSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			OneOf: openapi3.SchemaRefs{
				{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"records": &openapi3.SchemaRef{
								Value: &openapi3.Schema{
									Type:  &openapi3.Types{"array"},
									Items: recordSchema,
								},
							},
						},
					},
				},
				recordSchema,
			},
		},
	}

	op := &openapi3.Operation{
		Tags:        []string{ep.Name},
		Summary:     fmt.Sprintf("Run batch endpoint %s", ep.Name),
		Description: fmt.Sprintf("Upsert records into %s on service %s. Send {\"records\": [...]} or a single record object.", ep.Table, ep.Service),
		OperationID: "batch_" + operationName(ep.Name),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: "Record batch.",
				Required:    true,
				Content:     openapi3.NewContentWithJSONSchemaRef(reqSchema),
			},
		},
		Responses: newResponses("200", "Batch result",
			openapi3.NewSchemaRef("#/components/schemas/BatchResponse", nil)),
	}

	doc.Paths.Set("/api/v1/batch/"+ep.Name, &openapi3.PathItem{Post: op})
}

// ─── Schema Builders ────────────────────────────────────────────────────────

// valueSchema infers a parameter's JSON Schema type from its declared default
// value, falling back to string.
func valueSchema(defaultValue interface{}, description string) *openapi3.Schema {
	s := &openapi3.Schema{
		Type:        &openapi3.Types{"string"},
		Description: description,
	}
	switch defaultValue.(type) {
	case float64, int, int64, json.Number:
		s.Type = &openapi3.Types{"number"}
	case bool:
		s.Type = &openapi3.Types{"boolean"}
	case []interface{}:
		s.Type = &openapi3.Types{"array"}
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	if defaultValue != nil {
		s.Default = defaultValue
	}
	return s
}

func readResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"Result": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"string"},
					Enum: []interface{}{"OK", "KO"},
				}},
				"ProvidedParameters": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:        &openapi3.Types{"string"},
					Description: "Comma-joined names of the filter parameters present in the request.",
				}},
				"Records": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
				}},
				"Reason": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"string"},
				}},
			},
		},
	}
}

func batchResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"Result": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type: &openapi3.Types{"string"},
					Enum: []interface{}{"OK", "PARTIAL", "KO"},
				}},
				"Inserted": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
				"Updated":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
				"Errors":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
				"ErrorDetails": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				}},
				"Message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}
}

func errorResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
						},
					},
				},
			},
		},
	}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and standard
// error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)

	badReqDesc := "Bad request"
	responses.Set("400", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &badReqDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	unauthDesc := "Unauthorized"
	responses.Set("401", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &unauthDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	notFoundDesc := "Not found"
	responses.Set("404", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &notFoundDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	serverErrDesc := "Internal server error"
	responses.Set("500", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &serverErrDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	return responses
}

// operationName turns an endpoint name into a legal operationId fragment.
func operationName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
