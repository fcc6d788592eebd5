package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/dialect"
)

// dataDir is set by the persistent --data-dir flag.
var dataDir string

// resolveDataDir returns the directory holding the SQLite config store.
// Precedence: --data-dir flag, CONDUIT_DATA_DIR env, ~/.conduit.
func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	if env := os.Getenv("CONDUIT_DATA_DIR"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".conduit"), nil
}

// openConfigStore opens the on-disk config store, creating the data
// directory if needed.
func openConfigStore() (*config.Store, error) {
	dir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return config.NewStore(dir)
}

// connectServices opens a connection for every active service in the store.
// A service that fails to connect is logged and skipped; its endpoints will
// return errors until the database comes back.
func connectServices(ctx context.Context, store *config.Store, registry *dialect.Registry, logger *slog.Logger) {
	services, err := store.ListServices(ctx)
	if err != nil {
		logger.Error("failed to list services", "error", err)
		return
	}
	for _, svc := range services {
		if !svc.IsActive {
			continue
		}
		pool := dialect.PoolConfig{
			MaxOpenConns:    svc.Pool.MaxOpenConns,
			MaxIdleConns:    svc.Pool.MaxIdleConns,
			ConnMaxLifetime: svc.Pool.ConnMaxLifetime,
			ConnMaxIdleTime: svc.Pool.ConnMaxIdleTime,
		}
		if err := registry.Connect(svc.Name, svc.Driver, svc.DSN, pool); err != nil {
			logger.Error("failed to connect service", "service", svc.Name, "driver", svc.Driver, "error", err)
			continue
		}
		logger.Info("connected service", "service", svc.Name, "driver", svc.Driver)
	}
}
