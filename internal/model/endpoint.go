package model

import "time"

// ParameterCondition is the declared rule governing one request field's
// effect on a query endpoint's WHERE clause.
//
// Exactly one of the present/absent branches contributes per evaluation;
// both may be empty, in which case the field contributes no clause (but a
// present field is still reported as provided).
type ParameterCondition struct {
	// Name is the request field, matched case-insensitively.
	Name string `json:"name" yaml:"name"`
	// SQLWhenPresent is appended to the WHERE list when the field is present.
	// It is author-controlled SQL and may reference a :named parameter.
	SQLWhenPresent string `json:"sql_when_present,omitempty" yaml:"sql_when_present,omitempty"`
	// SQLWhenAbsent is appended when the field is absent.
	SQLWhenAbsent string `json:"sql_when_absent,omitempty" yaml:"sql_when_absent,omitempty"`
	// BindParameter binds the field's value (or DefaultValue when absent)
	// as a named query parameter. When false the fragment is assumed to be
	// self-contained.
	BindParameter bool `json:"bind_parameter" yaml:"bind_parameter"`
	// DefaultValue is bound when the field is absent and BindParameter is set.
	DefaultValue interface{} `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

// FieldMapping declares the correspondence between a request field and a
// storage column, with required/key/default metadata.
type FieldMapping struct {
	RequestField  string      `json:"request_field" yaml:"request_field"`
	StorageColumn string      `json:"storage_column" yaml:"storage_column"`
	Required      bool        `json:"required" yaml:"required"`
	IsKey         bool        `json:"is_key" yaml:"is_key"`
	DefaultValue  interface{} `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

// QueryEndpoint is a declared read endpoint: a SQL template with at most one
// {{where}} marker, driven by per-parameter conditions.
type QueryEndpoint struct {
	ID           int64                `json:"id" yaml:"-"`
	Name         string               `json:"name" yaml:"name"`
	Service      string               `json:"service" yaml:"service"`
	Template     string               `json:"template" yaml:"template"`
	DefaultWhere string               `json:"default_where,omitempty" yaml:"default_where,omitempty"`
	Conditions   []ParameterCondition `json:"conditions" yaml:"conditions"`
	Mappings     []FieldMapping       `json:"mappings,omitempty" yaml:"mappings,omitempty"`
	CreatedAt    time.Time            `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time            `json:"updated_at" yaml:"-"`
}

// BatchEndpoint is a declared batch upsert endpoint targeting one table.
type BatchEndpoint struct {
	ID           int64          `json:"id" yaml:"-"`
	Name         string         `json:"name" yaml:"name"`
	Service      string         `json:"service" yaml:"service"`
	Table        string         `json:"table" yaml:"table"`
	AllowUpdates bool           `json:"allow_updates" yaml:"allow_updates"`
	MaxBatchSize int            `json:"max_batch_size" yaml:"max_batch_size"`
	Mappings     []FieldMapping `json:"mappings" yaml:"mappings"`
	CreatedAt    time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"-"`
}
