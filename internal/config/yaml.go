package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conduitdb/conduit/internal/model"
)

// YAMLConfig represents the top-level conduit configuration file.
type YAMLConfig struct {
	Server         ServerConfig        `yaml:"server"`
	Auth           AuthConfig          `yaml:"auth"`
	Services       []ServiceYAML       `yaml:"services"`
	QueryEndpoints []QueryEndpointYAML `yaml:"query_endpoints"`
	BatchEndpoints []BatchEndpointYAML `yaml:"batch_endpoints"`
	MCP            MCPConfig           `yaml:"mcp"`
	Logging        LoggingConfig       `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	MaxBodySize     string     `yaml:"max_body_size"`
	RateLimit       int        `yaml:"rate_limit"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors"`
	TLS             TLSConfig  `yaml:"tls"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// TLSConfig controls TLS termination at the server level.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	JWTExpiry    string `yaml:"jwt_expiry"`
	APIKeyHeader string `yaml:"api_key_header"`
}

// ServiceYAML defines a database service in the YAML configuration file.
type ServiceYAML struct {
	Name   string          `yaml:"name"`
	Label  string          `yaml:"label"`
	Driver string          `yaml:"driver"`
	DSN    string          `yaml:"dsn"`
	Pool   *PoolYAMLConfig `yaml:"pool,omitempty"`
}

// PoolYAMLConfig controls the connection pool for a service in YAML config.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// ToModel converts a YAML service declaration to its model form. Services
// declared in the file are active by default. A malformed conn_max_lifetime
// is ignored rather than failing the whole config.
func (y ServiceYAML) ToModel() model.ServiceConfig {
	svc := model.ServiceConfig{
		Name:     y.Name,
		Label:    y.Label,
		Driver:   y.Driver,
		DSN:      y.DSN,
		IsActive: true,
	}
	if y.Pool != nil {
		svc.Pool.MaxOpenConns = y.Pool.MaxOpenConns
		svc.Pool.MaxIdleConns = y.Pool.MaxIdleConns
		if y.Pool.ConnMaxLifetime != "" {
			if d, err := time.ParseDuration(y.Pool.ConnMaxLifetime); err == nil {
				svc.Pool.ConnMaxLifetime = d
			}
		}
	}
	return svc
}

// QueryEndpointYAML declares a conditional query endpoint in the config file.
type QueryEndpointYAML struct {
	Name         string                     `yaml:"name"`
	Service      string                     `yaml:"service"`
	Template     string                     `yaml:"template"`
	DefaultWhere string                     `yaml:"default_where"`
	Conditions   []model.ParameterCondition `yaml:"conditions"`
	Mappings     []model.FieldMapping       `yaml:"mappings"`
}

// BatchEndpointYAML declares a batch upsert endpoint in the config file.
type BatchEndpointYAML struct {
	Name         string               `yaml:"name"`
	Service      string               `yaml:"service"`
	Table        string               `yaml:"table"`
	AllowUpdates *bool                `yaml:"allow_updates,omitempty"`
	MaxBatchSize int                  `yaml:"max_batch_size"`
	Mappings     []model.FieldMapping `yaml:"mappings"`
}

// ToModel converts a YAML query endpoint declaration to its model form.
func (y QueryEndpointYAML) ToModel() model.QueryEndpoint {
	return model.QueryEndpoint{
		Name:         y.Name,
		Service:      y.Service,
		Template:     y.Template,
		DefaultWhere: y.DefaultWhere,
		Conditions:   y.Conditions,
		Mappings:     y.Mappings,
	}
}

// ToModel converts a YAML batch endpoint declaration to its model form.
// allow_updates defaults to true when omitted.
func (y BatchEndpointYAML) ToModel() model.BatchEndpoint {
	allow := true
	if y.AllowUpdates != nil {
		allow = *y.AllowUpdates
	}
	return model.BatchEndpoint{
		Name:         y.Name,
		Service:      y.Service,
		Table:        y.Table,
		AllowUpdates: allow,
		MaxBatchSize: y.MaxBatchSize,
		Mappings:     y.Mappings,
	}
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Transport string `yaml:"transport"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	var cfg YAMLConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodySize:     "10MB",
			RateLimit:       100,
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
		},
		Auth: AuthConfig{
			JWTExpiry:    "1h",
			APIKeyHeader: "X-API-Key",
		},
		MCP: MCPConfig{
			Enabled:   false,
			Transport: "stdio",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
