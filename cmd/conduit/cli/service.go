package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/conduitdb/conduit/internal/dialect"
	"github.com/conduitdb/conduit/internal/model"
)

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage database services",
	}
	cmd.AddCommand(newServiceAddCmd())
	cmd.AddCommand(newServiceListCmd())
	cmd.AddCommand(newServiceRemoveCmd())
	cmd.AddCommand(newServiceTestCmd())
	return cmd
}

func newServiceAddCmd() *cobra.Command {
	var (
		driver       string
		dsn          string
		label        string
		maxOpenConns int
		skipTest     bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a database service",
		Long: `Register a database service in the config store.

The DSN usually carries credentials; when --dsn is omitted it is read from
the terminal without echo.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if _, err := dialect.Lookup(driver); err != nil {
				return err
			}

			if dsn == "" {
				fmt.Fprintf(os.Stderr, "DSN for %s: ", name)
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return fmt.Errorf("read DSN: %w", err)
				}
				dsn = string(raw)
			}
			if dsn == "" {
				return fmt.Errorf("DSN is required")
			}

			if !skipTest {
				if err := probeConnection(cmd.Context(), driver, dsn); err != nil {
					return fmt.Errorf("connection test failed (use --skip-test to register anyway): %w", err)
				}
			}

			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			svc := &model.ServiceConfig{
				Name:     name,
				Label:    label,
				Driver:   driver,
				DSN:      dsn,
				IsActive: true,
				Pool:     model.PoolConfig{MaxOpenConns: maxOpenConns},
			}
			if err := store.CreateService(cmd.Context(), svc); err != nil {
				return err
			}

			fmt.Printf("Registered service %q (%s, %s)\n", name, driver, dialect.RedactDSN(dsn))
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "database driver (postgres, mysql, sqlserver, oracle, snowflake, sqlite)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "connection string (prompted if omitted)")
	cmd.Flags().StringVar(&label, "label", "", "human-readable label")
	cmd.Flags().IntVar(&maxOpenConns, "max-open-conns", 0, "connection pool ceiling (0 = driver default)")
	cmd.Flags().BoolVar(&skipTest, "skip-test", false, "register without testing the connection")
	cmd.MarkFlagRequired("driver")
	return cmd
}

func newServiceListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered services",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			services, err := store.ListServices(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				type row struct {
					Name     string `json:"name"`
					Label    string `json:"label,omitempty"`
					Driver   string `json:"driver"`
					DSN      string `json:"dsn"`
					IsActive bool   `json:"is_active"`
				}
				rows := make([]row, len(services))
				for i, svc := range services {
					rows[i] = row{svc.Name, svc.Label, svc.Driver, dialect.RedactDSN(svc.DSN), svc.IsActive}
				}
				b, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}

			if len(services) == 0 {
				fmt.Println("No services registered. Use 'conduit service add' to register one.")
				return nil
			}
			fmt.Printf("%-20s %-12s %-8s %s\n", "NAME", "DRIVER", "ACTIVE", "DSN")
			for _, svc := range services {
				fmt.Printf("%-20s %-12s %-8t %s\n", svc.Name, svc.Driver, svc.IsActive, dialect.RedactDSN(svc.DSN))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func newServiceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a registered service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteService(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed service %q\n", args[0])
			return nil
		},
	}
}

func newServiceTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Test connectivity to a registered service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := store.GetService(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			start := time.Now()
			if err := probeConnection(cmd.Context(), svc.Driver, svc.DSN); err != nil {
				return fmt.Errorf("service %q unreachable: %w", svc.Name, err)
			}
			fmt.Printf("Service %q OK (%s, %s)\n", svc.Name, svc.Driver, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

// probeConnection opens a short-lived connection and pings it.
func probeConnection(ctx context.Context, driver, dsn string) error {
	db, _, err := dialect.Open(driver, dsn, dialect.PoolConfig{MaxOpenConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
