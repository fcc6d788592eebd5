package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conduitdb/conduit/internal/model"
	"github.com/conduitdb/conduit/internal/record"
)

// WhereMarker is the substitution token in a query template denoting where
// the assembled WHERE clause is spliced in. Matched case-insensitively.
const WhereMarker = "{{where}}"

var (
	markerRegex    = regexp.MustCompile(`(?i)\{\{where\}\}`)
	whereWordRegex = regexp.MustCompile(`(?i)\bwhere\b`)
)

// ConditionalBuilder produces final SQL text and a named parameter set from
// a template and per-field conditions. Construction validates the template;
// Build itself cannot fail.
type ConditionalBuilder struct {
	template     string
	defaultWhere string
	conditions   []model.ParameterCondition
	columns      map[string]string
	cache        *record.FieldCache
}

// NewConditionalBuilder validates the template and prepares a builder.
// A template with more than one marker is a configuration error raised here,
// never deferred to query time.
func NewConditionalBuilder(template, defaultWhere string, conditions []model.ParameterCondition, mappings []model.FieldMapping) (*ConditionalBuilder, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("query template is required")
	}
	if n := len(markerRegex.FindAllStringIndex(template, -1)); n > 1 {
		return nil, fmt.Errorf("query template contains %d %s markers, at most one is allowed", n, WhereMarker)
	}

	columns := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.RequestField != "" && m.StorageColumn != "" {
			columns[m.RequestField] = m.StorageColumn
		}
	}

	return &ConditionalBuilder{
		template:     template,
		defaultWhere: strings.TrimSpace(defaultWhere),
		conditions:   conditions,
		columns:      columns,
		cache:        record.DefaultCache,
	}, nil
}

// SetCache overrides the field-lookup cache. Intended for tests that
// exercise the replace-on-overflow path with a small ceiling.
func (b *ConditionalBuilder) SetCache(c *record.FieldCache) { b.cache = c }

// BuildResult is the outcome of assembling one request against the builder.
type BuildResult struct {
	// SQL is the final statement with :named placeholders. It never embeds
	// a request-supplied value as a literal.
	SQL string
	// Params maps placeholder names to bound values.
	Params map[string]interface{}
	// Provided lists the condition fields present in the request, in
	// declared condition order.
	Provided []string
}

// Build evaluates the conditions against one request record, in declared
// order, and assembles the final SQL.
func (b *ConditionalBuilder) Build(rec record.Record) *BuildResult {
	var where []string
	params := make(map[string]interface{})
	provided := make([]string, 0, len(b.conditions))

	for _, cond := range b.conditions {
		val, ok := b.cache.Resolve(rec, cond.Name)
		if ok {
			provided = append(provided, cond.Name)
			if frag := strings.TrimSpace(cond.SQLWhenPresent); frag != "" {
				where = append(where, frag)
			}
			if cond.BindParameter {
				params[b.paramName(cond.Name)] = val
			}
			continue
		}
		if frag := strings.TrimSpace(cond.SQLWhenAbsent); frag != "" {
			where = append(where, frag)
		}
		if cond.BindParameter && cond.DefaultValue != nil {
			params[b.paramName(cond.Name)] = cond.DefaultValue
		}
	}

	var sql string
	switch {
	case len(where) > 0:
		sql = b.splice(strings.Join(where, " AND "))
	case b.defaultWhere != "":
		sql = b.splice(b.defaultWhere)
	default:
		sql = strings.TrimSpace(markerRegex.ReplaceAllString(b.template, ""))
	}

	return &BuildResult{SQL: sql, Params: params, Provided: provided}
}

// paramName is the bound-parameter name for a field: its mapped storage
// column, falling back to the field name when unmapped.
func (b *ConditionalBuilder) paramName(field string) string {
	if col, ok := b.columns[field]; ok {
		return col
	}
	return field
}

// splice inserts the assembled clause at the marker position as a full WHERE
// clause. Templates without a marker get it appended instead: with WHERE when
// the template has none, with AND when it already carries one.
func (b *ConditionalBuilder) splice(clause string) string {
	if markerRegex.MatchString(b.template) {
		return markerRegex.ReplaceAllString(b.template, "WHERE "+clause)
	}
	if whereWordRegex.MatchString(b.template) {
		return b.template + " AND " + clause
	}
	return b.template + " WHERE " + clause
}
