package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/conduitdb/conduit/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store manages Conduit's internal configuration state backed by SQLite.
// It persists services, declared endpoints, API tokens, and settings.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new config store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "conduit.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open config database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate config database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Service CRUD
// ---------------------------------------------------------------------------

type serviceRow struct {
	ID                int64     `db:"id"`
	Name              string    `db:"name"`
	Label             string    `db:"label"`
	Driver            string    `db:"driver"`
	DSN               string    `db:"dsn"`
	IsActive          bool      `db:"is_active"`
	MaxOpenConns      int       `db:"max_open_conns"`
	MaxIdleConns      int       `db:"max_idle_conns"`
	ConnMaxLifetimeMs int64     `db:"conn_max_lifetime_ms"`
	ConnMaxIdleTimeMs int64     `db:"conn_max_idle_time_ms"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r serviceRow) toModel() model.ServiceConfig {
	return model.ServiceConfig{
		ID:       r.ID,
		Name:     r.Name,
		Label:    r.Label,
		Driver:   r.Driver,
		DSN:      r.DSN,
		IsActive: r.IsActive,
		Pool: model.PoolConfig{
			MaxOpenConns:    r.MaxOpenConns,
			MaxIdleConns:    r.MaxIdleConns,
			ConnMaxLifetime: time.Duration(r.ConnMaxLifetimeMs) * time.Millisecond,
			ConnMaxIdleTime: time.Duration(r.ConnMaxIdleTimeMs) * time.Millisecond,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// CreateService inserts a new service definition.
func (s *Store) CreateService(ctx context.Context, svc *model.ServiceConfig) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO services (name, label, driver, dsn, is_active,
			max_open_conns, max_idle_conns, conn_max_lifetime_ms, conn_max_idle_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.Name, svc.Label, svc.Driver, svc.DSN, svc.IsActive,
		svc.Pool.MaxOpenConns, svc.Pool.MaxIdleConns,
		svc.Pool.ConnMaxLifetime.Milliseconds(), svc.Pool.ConnMaxIdleTime.Milliseconds())
	if err != nil {
		return fmt.Errorf("create service %q: %w", svc.Name, err)
	}
	svc.ID, _ = res.LastInsertId()
	return nil
}

// GetService fetches a service by name.
func (s *Store) GetService(ctx context.Context, name string) (*model.ServiceConfig, error) {
	var row serviceRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM services WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service %q: %w", name, err)
	}
	svc := row.toModel()
	return &svc, nil
}

// ListServices returns all service definitions.
func (s *Store) ListServices(ctx context.Context) ([]model.ServiceConfig, error) {
	var rows []serviceRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM services ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	out := make([]model.ServiceConfig, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// DeleteService removes a service definition by name.
func (s *Store) DeleteService(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM services WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete service %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Query endpoint CRUD
// ---------------------------------------------------------------------------

type queryEndpointRow struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	Service        string    `db:"service"`
	Template       string    `db:"template"`
	DefaultWhere   string    `db:"default_where"`
	ConditionsJSON string    `db:"conditions_json"`
	MappingsJSON   string    `db:"mappings_json"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r queryEndpointRow) toModel() (model.QueryEndpoint, error) {
	ep := model.QueryEndpoint{
		ID:           r.ID,
		Name:         r.Name,
		Service:      r.Service,
		Template:     r.Template,
		DefaultWhere: r.DefaultWhere,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.ConditionsJSON), &ep.Conditions); err != nil {
		return ep, fmt.Errorf("endpoint %q conditions: %w", r.Name, err)
	}
	if err := json.Unmarshal([]byte(r.MappingsJSON), &ep.Mappings); err != nil {
		return ep, fmt.Errorf("endpoint %q mappings: %w", r.Name, err)
	}
	return ep, nil
}

// SaveQueryEndpoint inserts or replaces a query endpoint definition by name.
func (s *Store) SaveQueryEndpoint(ctx context.Context, ep *model.QueryEndpoint) error {
	conds, err := json.Marshal(ep.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	maps, err := json.Marshal(ep.Mappings)
	if err != nil {
		return fmt.Errorf("marshal mappings: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO query_endpoints (name, service, template, default_where, conditions_json, mappings_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			service = excluded.service,
			template = excluded.template,
			default_where = excluded.default_where,
			conditions_json = excluded.conditions_json,
			mappings_json = excluded.mappings_json,
			updated_at = CURRENT_TIMESTAMP`,
		ep.Name, ep.Service, ep.Template, ep.DefaultWhere, string(conds), string(maps))
	if err != nil {
		return fmt.Errorf("save query endpoint %q: %w", ep.Name, err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		ep.ID = id
	}
	return nil
}

// GetQueryEndpoint fetches a query endpoint by name.
func (s *Store) GetQueryEndpoint(ctx context.Context, name string) (*model.QueryEndpoint, error) {
	var row queryEndpointRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM query_endpoints WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get query endpoint %q: %w", name, err)
	}
	ep, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// ListQueryEndpoints returns all query endpoint definitions.
func (s *Store) ListQueryEndpoints(ctx context.Context) ([]model.QueryEndpoint, error) {
	var rows []queryEndpointRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM query_endpoints ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list query endpoints: %w", err)
	}
	out := make([]model.QueryEndpoint, 0, len(rows))
	for _, r := range rows {
		ep, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// DeleteQueryEndpoint removes a query endpoint by name.
func (s *Store) DeleteQueryEndpoint(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_endpoints WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete query endpoint %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Batch endpoint CRUD
// ---------------------------------------------------------------------------

type batchEndpointRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Service      string    `db:"service"`
	TableName    string    `db:"table_name"`
	AllowUpdates bool      `db:"allow_updates"`
	MaxBatchSize int       `db:"max_batch_size"`
	MappingsJSON string    `db:"mappings_json"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r batchEndpointRow) toModel() (model.BatchEndpoint, error) {
	ep := model.BatchEndpoint{
		ID:           r.ID,
		Name:         r.Name,
		Service:      r.Service,
		Table:        r.TableName,
		AllowUpdates: r.AllowUpdates,
		MaxBatchSize: r.MaxBatchSize,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.MappingsJSON), &ep.Mappings); err != nil {
		return ep, fmt.Errorf("endpoint %q mappings: %w", r.Name, err)
	}
	return ep, nil
}

// SaveBatchEndpoint inserts or replaces a batch endpoint definition by name.
func (s *Store) SaveBatchEndpoint(ctx context.Context, ep *model.BatchEndpoint) error {
	maps, err := json.Marshal(ep.Mappings)
	if err != nil {
		return fmt.Errorf("marshal mappings: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_endpoints (name, service, table_name, allow_updates, max_batch_size, mappings_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			service = excluded.service,
			table_name = excluded.table_name,
			allow_updates = excluded.allow_updates,
			max_batch_size = excluded.max_batch_size,
			mappings_json = excluded.mappings_json,
			updated_at = CURRENT_TIMESTAMP`,
		ep.Name, ep.Service, ep.Table, ep.AllowUpdates, ep.MaxBatchSize, string(maps))
	if err != nil {
		return fmt.Errorf("save batch endpoint %q: %w", ep.Name, err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		ep.ID = id
	}
	return nil
}

// GetBatchEndpoint fetches a batch endpoint by name.
func (s *Store) GetBatchEndpoint(ctx context.Context, name string) (*model.BatchEndpoint, error) {
	var row batchEndpointRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM batch_endpoints WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch endpoint %q: %w", name, err)
	}
	ep, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// ListBatchEndpoints returns all batch endpoint definitions.
func (s *Store) ListBatchEndpoints(ctx context.Context) ([]model.BatchEndpoint, error) {
	var rows []batchEndpointRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM batch_endpoints ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list batch endpoints: %w", err)
	}
	out := make([]model.BatchEndpoint, 0, len(rows))
	for _, r := range rows {
		ep, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// DeleteBatchEndpoint removes a batch endpoint by name.
func (s *Store) DeleteBatchEndpoint(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM batch_endpoints WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete batch endpoint %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// API tokens
// ---------------------------------------------------------------------------

type tokenRow struct {
	ID        int64        `db:"id"`
	Name      string       `db:"name"`
	KeyHash   string       `db:"key_hash"`
	IsActive  bool         `db:"is_active"`
	ExpiresAt sql.NullTime `db:"expires_at"`
	LastUsed  sql.NullTime `db:"last_used"`
	CreatedAt time.Time    `db:"created_at"`
}

func (r tokenRow) toModel() model.APIToken {
	tok := model.APIToken{
		ID:        r.ID,
		Name:      r.Name,
		KeyHash:   r.KeyHash,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		tok.ExpiresAt = &t
	}
	if r.LastUsed.Valid {
		t := r.LastUsed.Time
		tok.LastUsedAt = &t
	}
	return tok
}

// CreateAPIToken stores a new token hash.
func (s *Store) CreateAPIToken(ctx context.Context, name, keyHash string, expiresAt *time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO api_tokens (name, key_hash, expires_at) VALUES (?, ?, ?)`,
		name, keyHash, expiresAt)
	if err != nil {
		return 0, fmt.Errorf("create api token: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// GetAPITokenByHash looks up a token by its SHA-256 hash.
func (s *Store) GetAPITokenByHash(ctx context.Context, keyHash string) (*model.APIToken, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM api_tokens WHERE key_hash = ?`, keyHash)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api token: %w", err)
	}
	tok := row.toModel()
	return &tok, nil
}

// ListAPITokens returns every stored token, newest first.
func (s *Store) ListAPITokens(ctx context.Context) ([]model.APIToken, error) {
	var rows []tokenRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM api_tokens ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list api tokens: %w", err)
	}
	out := make([]model.APIToken, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// UpdateAPITokenLastUsed stamps a token's last use time.
func (s *Store) UpdateAPITokenLastUsed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// RevokeAPIToken deactivates a token.
func (s *Store) RevokeAPIToken(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_tokens SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("revoke api token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns a settings value by key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting inserts or updates a settings value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
