// Package upsert implements Conduit's batch insert-or-update engine: a bulk
// existence pre-check that collapses N lookups into one query, followed by
// per-record insert/update routing with composite-key matching.
package upsert

import (
	"strings"

	"github.com/conduitdb/conduit/internal/record"
)

// Composite keys join the textual forms of a record's key-column values.
// The delimiter is the unit separator, a control character that ordinary
// data never types; values are escaped anyway so that a value whose text
// equals the delimiter or the null sentinel cannot collide.
const (
	keyDelimiter = "\x1f"
	nullSentinel = "\x00"
	keyEscape    = "\x1b"
)

var keyEscaper = strings.NewReplacer(
	keyEscape, keyEscape+keyEscape,
	keyDelimiter, keyEscape+"u",
	nullSentinel, keyEscape+"n",
)

// EncodeKey builds the collision-safe composite key for one record's key
// values, in caller-specified key-field order. Nil values encode as the
// null sentinel, which escaped value text can never equal.
func EncodeKey(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			parts[i] = nullSentinel
			continue
		}
		parts[i] = keyEscaper.Replace(record.Text(v))
	}
	return strings.Join(parts, keyDelimiter)
}
