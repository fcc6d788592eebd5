package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduitdb/conduit/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		output  string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI document for the declared endpoints",
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

			doc := openapi.Generate(queryEPs, batchEPs, baseURL)
			b, err := openapi.MarshalJSON(doc)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				fmt.Println(string(b))
				return nil
			}
			if err := os.WriteFile(output, append(b, '\n'), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote OpenAPI document to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "server URL embedded in the document")
	return cmd
}
