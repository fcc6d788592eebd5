package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conduit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadYAMLConfig(t *testing.T) {
	path := writeTempConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
  max_body_size: 5MB
services:
  - name: warehouse
    driver: postgres
    dsn: postgres://u:p@localhost/warehouse
    pool:
      max_open_conns: 10
      conn_max_lifetime: 5m
query_endpoints:
  - name: orders
    service: warehouse
    template: SELECT * FROM orders {{where}}
    conditions:
      - name: Status
        sql_when_present: "status = :status"
        bind_parameter: true
batch_endpoints:
  - name: customers
    service: warehouse
    table: customers
    mappings:
      - request_field: Id
        storage_column: id
        is_key: true
`)

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Services) != 1 || cfg.Services[0].Name != "warehouse" {
		t.Fatalf("services = %+v", cfg.Services)
	}
	if len(cfg.QueryEndpoints) != 1 || len(cfg.QueryEndpoints[0].Conditions) != 1 {
		t.Fatalf("query endpoints = %+v", cfg.QueryEndpoints)
	}
	if cfg.QueryEndpoints[0].Conditions[0].SQLWhenPresent != "status = :status" {
		t.Errorf("condition = %+v", cfg.QueryEndpoints[0].Conditions[0])
	}
	if len(cfg.BatchEndpoints) != 1 || !cfg.BatchEndpoints[0].Mappings[0].IsKey {
		t.Fatalf("batch endpoints = %+v", cfg.BatchEndpoints)
	}
}

func TestLoadYAMLConfig_EnvExpansion(t *testing.T) {
	t.Setenv("CONDUIT_TEST_DSN", "postgres://u:p@db/orders")

	path := writeTempConfig(t, `
services:
  - name: main
    driver: postgres
    dsn: ${CONDUIT_TEST_DSN}
`)

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Services[0].DSN != "postgres://u:p@db/orders" {
		t.Errorf("DSN = %q, env reference not expanded", cfg.Services[0].DSN)
	}
}

func TestLoadYAMLConfig_Missing(t *testing.T) {
	if _, err := LoadYAMLConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file should error")
	}
}

func TestLoadYAMLConfig_Malformed(t *testing.T) {
	path := writeTempConfig(t, "services: [unclosed")
	if _, err := LoadYAMLConfig(path); err == nil {
		t.Error("malformed YAML should error")
	}
}

func TestServiceYAML_ToModel(t *testing.T) {
	y := ServiceYAML{
		Name:   "warehouse",
		Driver: "postgres",
		DSN:    "dsn",
		Pool:   &PoolYAMLConfig{MaxOpenConns: 10, ConnMaxLifetime: "5m"},
	}
	svc := y.ToModel()
	if !svc.IsActive {
		t.Error("declared services default to active")
	}
	if svc.Pool.MaxOpenConns != 10 || svc.Pool.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("pool = %+v", svc.Pool)
	}

	// No pool block, no problem.
	bare := ServiceYAML{Name: "x", Driver: "sqlite", DSN: ":memory:"}
	if bare.ToModel().Pool.MaxOpenConns != 0 {
		t.Error("missing pool block should leave zero values")
	}
}

func TestBatchEndpointYAML_ToModel_AllowUpdatesDefault(t *testing.T) {
	y := BatchEndpointYAML{Name: "customers", Service: "db", Table: "customers"}
	if !y.ToModel().AllowUpdates {
		t.Error("allow_updates defaults to true when omitted")
	}

	f := false
	y.AllowUpdates = &f
	if y.ToModel().AllowUpdates {
		t.Error("explicit false must be honored")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conduit.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("reload default config: %v", err)
	}
	def := DefaultYAMLConfig()
	if cfg.Server.Port != def.Server.Port || cfg.Auth.APIKeyHeader != def.Auth.APIKeyHeader {
		t.Errorf("reloaded config = %+v, want defaults", cfg)
	}
}
