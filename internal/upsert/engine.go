package upsert

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/conduitdb/conduit/internal/dialect"
	"github.com/conduitdb/conduit/internal/model"
	"github.com/conduitdb/conduit/internal/query"
	"github.com/conduitdb/conduit/internal/record"
)

// DefaultMaxBatchSize caps one call's record count unless configured.
const DefaultMaxBatchSize = 1000

// Config describes one batch endpoint's engine.
type Config struct {
	Table        string
	Mappings     []model.FieldMapping
	AllowUpdates bool
	MaxBatchSize int
	Logger       *slog.Logger
	Cache        *record.FieldCache
}

// Engine routes each record of a batch to insert or update, driven by one
// bulk existence pre-check. Configuration problems (bad identifiers, no key
// mapping) fail at construction, never per call.
type Engine struct {
	table        string
	mappings     []model.FieldMapping
	keyMappings  []model.FieldMapping
	allowUpdates bool
	maxBatch     int
	logger       *slog.Logger
	cache        *record.FieldCache
}

// New validates the configuration and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if err := query.ValidateIdentifier(cfg.Table); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	if len(cfg.Mappings) == 0 {
		return nil, fmt.Errorf("at least one field mapping is required")
	}

	var keys []model.FieldMapping
	for _, m := range cfg.Mappings {
		if m.RequestField == "" {
			return nil, fmt.Errorf("mapping with empty request field")
		}
		if err := query.ValidateIdentifier(m.StorageColumn); err != nil {
			return nil, fmt.Errorf("mapping %q: %w", m.RequestField, err)
		}
		if m.IsKey {
			keys = append(keys, m)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one mapping must be marked as key")
	}

	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = record.DefaultCache
	}

	return &Engine{
		table:        cfg.Table,
		mappings:     cfg.Mappings,
		keyMappings:  keys,
		allowUpdates: cfg.AllowUpdates,
		maxBatch:     maxBatch,
		logger:       logger,
		cache:        cache,
	}, nil
}

// Result aggregates one batch call's outcome.
type Result struct {
	Inserted     int
	Updated      int
	Errors       int
	ErrorDetails []string
	// Status is OK when nothing errored, KO when every record errored,
	// PARTIAL otherwise.
	Status string
	// Degraded reports that the bulk existence check failed and every
	// candidate was treated as new.
	Degraded bool
}

// prepared is one record after first-pass validation and extraction.
type prepared struct {
	index   int
	columns map[string]interface{}
	keyVals []interface{}
	allKeys bool
	keyDesc string
}

// Execute runs one batch. A batch larger than the configured ceiling fails
// the whole call with zero side effects; everything else is per-record.
func (e *Engine) Execute(ctx context.Context, conn *dialect.Conn, records []record.Record) (*Result, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records provided")
	}
	if len(records) > e.maxBatch {
		return nil, fmt.Errorf("batch of %d records exceeds the maximum of %d", len(records), e.maxBatch)
	}

	res := &Result{}

	// First pass: validate required fields and extract column values.
	// A failing record is skipped, never the batch.
	survivors := make([]*prepared, 0, len(records))
	for i, rec := range records {
		p, err := e.prepare(i, rec)
		if err != nil {
			res.fail(fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		survivors = append(survivors, p)
	}

	// One round trip answers existence for the whole batch. A failed check
	// degrades to "nothing exists": inserts of existing keys then surface
	// as per-record uniqueness errors rather than aborting the batch.
	existing := e.checkExisting(ctx, conn, survivors, res)

	for _, p := range survivors {
		key := EncodeKey(p.keyVals)
		if _, ok := existing[key]; ok && p.allKeys {
			if !e.allowUpdates {
				res.fail(fmt.Sprintf("record %d%s: already exists and updates are not allowed", p.index, p.keyDesc))
				continue
			}
			if err := e.update(ctx, conn, p); err != nil {
				res.fail(fmt.Sprintf("record %d%s: update: %v", p.index, p.keyDesc, err))
				continue
			}
			res.Updated++
			continue
		}
		if err := e.insert(ctx, conn, p); err != nil {
			res.fail(fmt.Sprintf("record %d%s: insert: %v", p.index, p.keyDesc, err))
			continue
		}
		res.Inserted++
	}

	switch {
	case res.Errors == 0:
		res.Status = model.ResultOK
	case res.Errors == len(records):
		res.Status = model.ResultKO
	default:
		res.Status = model.ResultPartial
	}
	return res, nil
}

// prepare validates one record and extracts its column-value map, applying
// mapping defaults, plus its ordered key values.
func (e *Engine) prepare(index int, rec record.Record) (*prepared, error) {
	columns := make(map[string]interface{}, len(e.mappings))
	for _, m := range e.mappings {
		v, ok := e.cache.Resolve(rec, m.RequestField)
		if !ok {
			if m.Required {
				return nil, fmt.Errorf("required field %q is missing", m.RequestField)
			}
			if m.DefaultValue != nil {
				columns[m.StorageColumn] = m.DefaultValue
			}
			continue
		}
		columns[m.StorageColumn] = v
	}

	p := &prepared{index: index, columns: columns, allKeys: true}
	var descs []string
	for _, km := range e.keyMappings {
		v, ok := columns[km.StorageColumn]
		if !ok {
			p.allKeys = false
			p.keyVals = append(p.keyVals, nil)
			continue
		}
		p.keyVals = append(p.keyVals, v)
		descs = append(descs, km.StorageColumn+"="+record.Text(v))
	}
	if len(descs) > 0 {
		p.keyDesc = " [" + strings.Join(descs, " ") + "]"
	}
	return p, nil
}

// checkExisting runs the bulk pre-check over every survivor with a complete
// key. Failure never aborts the batch: the result is flagged degraded and an
// empty set is used.
func (e *Engine) checkExisting(ctx context.Context, conn *dialect.Conn, survivors []*prepared, res *Result) map[string]struct{} {
	keyCols := make([]string, len(e.keyMappings))
	for i, km := range e.keyMappings {
		keyCols[i] = km.StorageColumn
	}

	var tuples [][]interface{}
	for _, p := range survivors {
		if p.allKeys {
			tuples = append(tuples, p.keyVals)
		}
	}
	if len(tuples) == 0 {
		return map[string]struct{}{}
	}

	existing, err := CheckExisting(ctx, conn.DB, conn.Dialect, e.table, keyCols, tuples)
	if err != nil {
		e.logger.Warn("bulk existence check failed, treating all records as new",
			"table", e.table, "records", len(tuples), "error", err)
		res.Degraded = true
		return map[string]struct{}{}
	}
	return existing
}

// insert writes the record's full column-value map.
func (e *Engine) insert(ctx context.Context, conn *dialect.Conn, p *prepared) error {
	if len(p.columns) == 0 {
		return fmt.Errorf("no columns to insert")
	}
	cols := sortedColumns(p.columns)

	quoted := make([]string, len(cols))
	binds := make([]string, len(cols))
	params := make(map[string]interface{}, len(cols))
	for i, col := range cols {
		name := bindName(col)
		quoted[i] = conn.Dialect.QuoteQualified(col)
		binds[i] = ":" + name
		params[name] = p.columns[col]
	}

	stmt := "INSERT INTO " + conn.Dialect.QuoteQualified(e.table) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(binds, ", ") + ")"
	return e.exec(ctx, conn, stmt, params)
}

// update writes the record's non-key columns, matching on an AND-joined key
// predicate. A record with no non-key columns is a no-op success.
func (e *Engine) update(ctx context.Context, conn *dialect.Conn, p *prepared) error {
	keySet := make(map[string]bool, len(e.keyMappings))
	for _, km := range e.keyMappings {
		keySet[km.StorageColumn] = true
	}

	var setCols []string
	for _, col := range sortedColumns(p.columns) {
		if !keySet[col] {
			setCols = append(setCols, col)
		}
	}
	if len(setCols) == 0 {
		return nil
	}

	params := make(map[string]interface{}, len(p.columns))
	sets := make([]string, len(setCols))
	for i, col := range setCols {
		name := bindName(col)
		sets[i] = conn.Dialect.QuoteQualified(col) + " = :" + name
		params[name] = p.columns[col]
	}

	wheres := make([]string, len(e.keyMappings))
	for i, km := range e.keyMappings {
		name := "k_" + bindName(km.StorageColumn)
		wheres[i] = conn.Dialect.QuoteQualified(km.StorageColumn) + " = :" + name
		params[name] = p.columns[km.StorageColumn]
	}

	stmt := "UPDATE " + conn.Dialect.QuoteQualified(e.table) +
		" SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(wheres, " AND ")
	return e.exec(ctx, conn, stmt, params)
}

func (e *Engine) exec(ctx context.Context, conn *dialect.Conn, stmt string, params map[string]interface{}) error {
	q, args, err := sqlx.Named(stmt, params)
	if err != nil {
		return err
	}
	q = sqlx.Rebind(conn.Dialect.BindType, q)
	_, err = conn.DB.ExecContext(ctx, q, args...)
	return err
}

func (r *Result) fail(detail string) {
	r.Errors++
	r.ErrorDetails = append(r.ErrorDetails, detail)
}

func sortedColumns(m map[string]interface{}) []string {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
