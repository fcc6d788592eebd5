package upsert

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/conduitdb/conduit/internal/dialect"
)

// bindNameClean strips characters that are not legal in a named bindvar.
var bindNameClean = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// CheckExisting issues exactly one SELECT DISTINCT over the key columns to
// determine which of the candidate composite keys already exist. Each
// candidate contributes an AND-joined equality predicate, OR-composed with
// the rest; bind names are qualified by candidate index to avoid collisions.
//
// keys holds one ordered key-value tuple per candidate; every tuple must be
// complete (callers exclude records missing a key field).
func CheckExisting(ctx context.Context, db sqlx.ExtContext, d dialect.Dialect, table string, keyColumns []string, keys [][]interface{}) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(keys) == 0 {
		return existing, nil
	}

	quotedCols := make([]string, len(keyColumns))
	for i, col := range keyColumns {
		quotedCols[i] = d.QuoteQualified(col)
	}

	preds := make([]string, 0, len(keys))
	params := make(map[string]interface{}, len(keys)*len(keyColumns))
	for i, tuple := range keys {
		if len(tuple) != len(keyColumns) {
			return nil, fmt.Errorf("key tuple %d has %d values, want %d", i, len(tuple), len(keyColumns))
		}
		ands := make([]string, len(keyColumns))
		for j, col := range keyColumns {
			name := fmt.Sprintf("p%d_%s", i, bindName(col))
			ands[j] = quotedCols[j] + " = :" + name
			params[name] = tuple[j]
		}
		preds = append(preds, "("+strings.Join(ands, " AND ")+")")
	}

	stmt := "SELECT DISTINCT " + strings.Join(quotedCols, ", ") +
		" FROM " + d.QuoteQualified(table) +
		" WHERE " + strings.Join(preds, " OR ")

	q, args, err := sqlx.Named(stmt, params)
	if err != nil {
		return nil, fmt.Errorf("bind existence query: %w", err)
	}
	q = sqlx.Rebind(d.BindType, q)

	rows, err := db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("existence query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan existence row: %w", err)
		}
		existing[EncodeKey(vals)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("existence rows: %w", err)
	}
	return existing, nil
}

func bindName(col string) string {
	return bindNameClean.ReplaceAllString(col, "_")
}
