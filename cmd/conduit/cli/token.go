package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduitdb/conduit/internal/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}
	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenRevokeCmd())
	return cmd
}

func newTokenCreateCmd() *cobra.Command {
	var (
		name      string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			raw, err := config.GenerateToken()
			if err != nil {
				return err
			}

			var expiresAt *time.Time
			if expiresIn > 0 {
				t := time.Now().Add(expiresIn)
				expiresAt = &t
			}

			id, err := store.CreateAPIToken(cmd.Context(), name, config.HashToken(raw), expiresAt)
			if err != nil {
				return err
			}

			fmt.Printf("Created token %q (id %d)\n\n", name, id)
			fmt.Printf("  %s\n\n", raw)
			fmt.Println("Save this token now - it cannot be retrieved again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "descriptive name for the token")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "token lifetime (e.g. 720h); 0 means no expiry")
	return cmd
}

func newTokenListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tokens, err := store.ListAPITokens(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				b, err := json.MarshalIndent(tokens, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}

			if len(tokens) == 0 {
				fmt.Println("No API tokens. Use 'conduit token create' to create one.")
				return nil
			}
			fmt.Printf("%-6s %-24s %-8s %-20s %s\n", "ID", "NAME", "ACTIVE", "LAST USED", "EXPIRES")
			for _, tok := range tokens {
				lastUsed := "never"
				if tok.LastUsedAt != nil {
					lastUsed = tok.LastUsedAt.Format(time.RFC3339)
				}
				expires := "-"
				if tok.ExpiresAt != nil {
					expires = tok.ExpiresAt.Format(time.RFC3339)
				}
				fmt.Printf("%-6d %-24s %-8t %-20s %s\n", tok.ID, tok.Name, tok.IsActive, lastUsed, expires)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func newTokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid token id %q", args[0])
			}

			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RevokeAPIToken(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Revoked token %d\n", id)
			return nil
		},
	}
}
