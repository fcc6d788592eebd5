package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/query"
	"github.com/conduitdb/conduit/internal/upsert"
)

func newEndpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Manage declared endpoints",
	}
	cmd.AddCommand(newEndpointImportCmd())
	cmd.AddCommand(newEndpointListCmd())
	cmd.AddCommand(newEndpointDeleteCmd())
	return cmd
}

func newEndpointImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import endpoint declarations from a YAML file",
		Long: `Import query and batch endpoint declarations from a YAML file into the
config store. Declarations are validated before saving; the import stops at
the first invalid one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ycfg, err := config.LoadYAMLConfig(args[0])
			if err != nil {
				return err
			}

			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			imported := 0
			for _, yep := range ycfg.QueryEndpoints {
				ep := yep.ToModel()
				if _, err := query.NewConditionalBuilder(ep.Template, ep.DefaultWhere, ep.Conditions, ep.Mappings); err != nil {
					return fmt.Errorf("query endpoint %q: %w", ep.Name, err)
				}
				if err := store.SaveQueryEndpoint(cmd.Context(), &ep); err != nil {
					return fmt.Errorf("query endpoint %q: %w", ep.Name, err)
				}
				imported++
			}

			for _, yep := range ycfg.BatchEndpoints {
				ep := yep.ToModel()
				if _, err := upsert.New(upsert.Config{
					Table:        ep.Table,
					Mappings:     ep.Mappings,
					AllowUpdates: ep.AllowUpdates,
					MaxBatchSize: ep.MaxBatchSize,
				}); err != nil {
					return fmt.Errorf("batch endpoint %q: %w", ep.Name, err)
				}
				if err := store.SaveBatchEndpoint(cmd.Context(), &ep); err != nil {
					return fmt.Errorf("batch endpoint %q: %w", ep.Name, err)
				}
				imported++
			}

			fmt.Printf("Imported %d endpoint(s)\n", imported)
			return nil
		},
	}
}

func newEndpointListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List declared endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			queryEPs, err := store.ListQueryEndpoints(cmd.Context())
			if err != nil {
				return err
			}
			batchEPs, err := store.ListBatchEndpoints(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				out := map[string]interface{}{
					"query_endpoints": queryEPs,
					"batch_endpoints": batchEPs,
				}
				b, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}

			if len(queryEPs) == 0 && len(batchEPs) == 0 {
				fmt.Println("No endpoints declared. Use 'conduit endpoint import' to add some.")
				return nil
			}
			fmt.Printf("%-8s %-24s %-16s %s\n", "TYPE", "NAME", "SERVICE", "DETAIL")
			for _, ep := range queryEPs {
				fmt.Printf("%-8s %-24s %-16s %d condition(s)\n", "query", ep.Name, ep.Service, len(ep.Conditions))
			}
			for _, ep := range batchEPs {
				fmt.Printf("%-8s %-24s %-16s table %s\n", "batch", ep.Name, ep.Service, ep.Table)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func newEndpointDeleteCmd() *cobra.Command {
	var epType string

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a declared endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			name := args[0]
			switch epType {
			case "query":
				err = store.DeleteQueryEndpoint(cmd.Context(), name)
			case "batch":
				err = store.DeleteBatchEndpoint(cmd.Context(), name)
			default:
				return fmt.Errorf("--type must be query or batch")
			}
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %s endpoint %q\n", epType, name)
			return nil
		},
	}

	cmd.Flags().StringVar(&epType, "type", "query", "endpoint type: query or batch")
	return cmd
}
