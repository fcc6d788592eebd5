package model

import "time"

// ServiceConfig describes a target database connection managed by Conduit.
type ServiceConfig struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Label     string    `json:"label,omitempty"`
	Driver    string    `json:"driver"`
	DSN       string    `json:"dsn"`
	IsActive  bool      `json:"is_active"`
	Pool      PoolConfig `json:"pool"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PoolConfig holds database/sql pool tuning for a service.
type PoolConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

// APIToken is a stored caller credential. Only the SHA-256 hash of the raw
// token is persisted.
type APIToken struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
