package dialect

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Conn is one connected service: a sqlx handle plus its dialect rules.
type Conn struct {
	DB      *sqlx.DB
	Dialect Dialect
}

// Registry manages connected services by name.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*Conn
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Conn)}
}

// Connect opens a connection for the service and registers it, replacing
// (and closing) any previous connection under the same name.
func (r *Registry) Connect(serviceName, driver, dsn string, pool PoolConfig) error {
	db, d, err := Open(driver, dsn, pool)
	if err != nil {
		return fmt.Errorf("connect service %q: %w", serviceName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.active[serviceName]; ok {
		existing.DB.Close()
	}
	r.active[serviceName] = &Conn{DB: db, Dialect: d}
	return nil
}

// Register installs an already-open connection. Used by tests.
func (r *Registry) Register(serviceName string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[serviceName] = conn
}

// Get returns the connection for a service.
func (r *Registry) Get(serviceName string) (*Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.active[serviceName]
	if !ok {
		return nil, fmt.Errorf("service %q not found (connected: %v)", serviceName, r.names())
	}
	return conn, nil
}

// Disconnect closes and removes a service.
func (r *Registry) Disconnect(serviceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.active[serviceName]
	if !ok {
		return fmt.Errorf("service %q not found", serviceName)
	}
	err := conn.DB.Close()
	delete(r.active, serviceName)
	return err
}

// CloseAll disconnects every service.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, conn := range r.active {
		conn.DB.Close()
		delete(r.active, name)
	}
}

// ListServices returns the connected service names.
func (r *Registry) ListServices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

// Ping checks one service's connectivity.
func (r *Registry) Ping(ctx context.Context, serviceName string) error {
	conn, err := r.Get(serviceName)
	if err != nil {
		return err
	}
	return conn.DB.PingContext(ctx)
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.active))
	for n := range r.active {
		names = append(names, n)
	}
	return names
}
