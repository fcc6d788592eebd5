package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/dialect"
	"github.com/conduitdb/conduit/internal/query"
	"github.com/conduitdb/conduit/internal/server"
	"github.com/conduitdb/conduit/internal/service"
	"github.com/conduitdb/conduit/internal/upsert"
)

const banner = `
   ___                _       _ _
  / __\___  _ __   __| |_   _(_) |_
 / /  / _ \| '_ \ / _` + "`" + ` | | | | | __|
/ /__| (_) | | | | (_| | |_| | | |_
\____/\___/|_| |_|\__,_|\__,_|_|\__|
`

// jwtSecretSetting is the store key holding the generated JWT signing secret
// when none is configured explicitly.
const jwtSecretSetting = "jwt_secret"

func newServeCmd() *cobra.Command {
	var (
		host   string
		port   int
		dev    bool
		noAuth bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Conduit API server",
		Long: `Start the HTTP server publishing the declared query and batch endpoints.

Services and endpoints declared in the YAML config file are synced into the
config store on startup; anything added later through the management API is
picked up immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), host, port, dev, noAuth)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen address (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "development mode: debug logging")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "disable authentication (development only)")
	return cmd
}

func runServe(ctx context.Context, host string, port int, dev, noAuth bool) error {
	ycfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		ycfg = loaded
	}

	logger := newLogger(ycfg.Logging, dev)
	slog.SetDefault(logger)

	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	if err := syncDeclarations(ctx, store, ycfg, logger); err != nil {
		return err
	}

	registry := dialect.NewRegistry()
	connectServices(ctx, store, registry, logger)

	jwtSecret := ycfg.Auth.JWTSecret
	if jwtSecret == "" && !noAuth {
		jwtSecret, err = loadOrCreateJWTSecret(ctx, store)
		if err != nil {
			return fmt.Errorf("initialize JWT secret: %w", err)
		}
	}
	authSvc := service.NewAuthService(store, jwtSecret)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = ycfg.Server.Host
	srvCfg.Port = ycfg.Server.Port
	srvCfg.RateLimit = ycfg.Server.RateLimit
	srvCfg.DisableAuth = noAuth
	if ycfg.Auth.APIKeyHeader != "" {
		srvCfg.APIKeyHeader = ycfg.Auth.APIKeyHeader
	}
	if len(ycfg.Server.CORS.Origins) > 0 {
		srvCfg.CORSOrigins = ycfg.Server.CORS.Origins
	}
	if ycfg.Server.MaxBodySize != "" {
		size, err := parseSize(ycfg.Server.MaxBodySize)
		if err != nil {
			return fmt.Errorf("server.max_body_size: %w", err)
		}
		srvCfg.MaxBodySize = size
	}
	if ycfg.Server.ShutdownTimeout != "" {
		d, err := time.ParseDuration(ycfg.Server.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("server.shutdown_timeout: %w", err)
		}
		srvCfg.ShutdownTimeout = d
	}
	if host != "" {
		srvCfg.Host = host
	}
	if port != 0 {
		srvCfg.Port = port
	}

	displayHost := srvCfg.Host
	if displayHost == "0.0.0.0" || displayHost == "" {
		displayHost = "localhost"
	}
	srvCfg.BaseURL = fmt.Sprintf("http://%s:%d", displayHost, srvCfg.Port)

	srv := server.New(srvCfg, registry, store, authSvc, logger)

	fmt.Fprint(os.Stderr, banner)
	fmt.Fprintf(os.Stderr, "conduit %s\n\n", appVersion)
	fmt.Fprintf(os.Stderr, "  API:      %s/api/v1\n", srvCfg.BaseURL)
	fmt.Fprintf(os.Stderr, "  OpenAPI:  %s/openapi.json\n", srvCfg.BaseURL)
	fmt.Fprintf(os.Stderr, "  Health:   %s/healthz\n\n", srvCfg.BaseURL)
	if noAuth {
		fmt.Fprintln(os.Stderr, "  WARNING: authentication is disabled")
	}

	return srv.ListenAndServe()
}

func newLogger(cfg config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// syncDeclarations upserts the YAML-declared services and endpoints into the
// config store. Invalid endpoint declarations are logged and skipped so one
// bad entry does not keep the server from starting.
func syncDeclarations(ctx context.Context, store *config.Store, ycfg *config.YAMLConfig, logger *slog.Logger) error {
	for _, svc := range ycfg.Services {
		if _, err := store.GetService(ctx, svc.Name); err == nil {
			continue // already registered; the store copy wins
		}
		cfg := svc.ToModel()
		if err := store.CreateService(ctx, &cfg); err != nil {
			return fmt.Errorf("register service %q: %w", svc.Name, err)
		}
		logger.Info("registered service from config", "service", svc.Name, "driver", svc.Driver)
	}

	for _, yep := range ycfg.QueryEndpoints {
		ep := yep.ToModel()
		if _, err := query.NewConditionalBuilder(ep.Template, ep.DefaultWhere, ep.Conditions, ep.Mappings); err != nil {
			logger.Error("skipping invalid query endpoint", "endpoint", ep.Name, "error", err)
			continue
		}
		if err := store.SaveQueryEndpoint(ctx, &ep); err != nil {
			return fmt.Errorf("save query endpoint %q: %w", ep.Name, err)
		}
	}

	for _, yep := range ycfg.BatchEndpoints {
		ep := yep.ToModel()
		if _, err := upsert.New(upsert.Config{
			Table:        ep.Table,
			Mappings:     ep.Mappings,
			AllowUpdates: ep.AllowUpdates,
			MaxBatchSize: ep.MaxBatchSize,
		}); err != nil {
			logger.Error("skipping invalid batch endpoint", "endpoint", ep.Name, "error", err)
			continue
		}
		if err := store.SaveBatchEndpoint(ctx, &ep); err != nil {
			return fmt.Errorf("save batch endpoint %q: %w", ep.Name, err)
		}
	}
	return nil
}

// loadOrCreateJWTSecret keeps session tokens valid across restarts by
// persisting a generated secret in the store the first time the server runs
// without an explicit auth.jwt_secret.
func loadOrCreateJWTSecret(ctx context.Context, store *config.Store) (string, error) {
	if secret, err := store.GetSetting(ctx, jwtSecretSetting); err == nil && secret != "" {
		return secret, nil
	}
	secret, err := config.GenerateToken()
	if err != nil {
		return "", err
	}
	if err := store.SetSetting(ctx, jwtSecretSetting, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// parseSize parses a human-readable size like "10MB" or "512KB" into bytes.
// A bare number is taken as bytes.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		mult, s = 1<<30, strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		mult, s = 1<<20, strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		mult, s = 1<<10, strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}
