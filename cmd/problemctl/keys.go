package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/admin"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/postgres"
)

var configPath string

// newKeysCmd manages admin keys stored in PostgreSQL.
func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage admin keys for rebuild and cache endpoints",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "configs/development.yaml", "path to config file")

	var name string
	var expiresIn time.Duration
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a key; the raw value is printed once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return withKeyStore(cmd, func(ctx context.Context, s *admin.Store) error {
				var expiresAt *time.Time
				if expiresIn > 0 {
					t := time.Now().Add(expiresIn)
					expiresAt = &t
				}
				raw, err := s.Create(ctx, name, expiresAt)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, "Store this key securely; it cannot be retrieved again.")
				fmt.Fprintf(w, "  Key:     %s\n", raw)
				fmt.Fprintf(w, "  Name:    %s\n", name)
				fmt.Fprintf(w, "  Expires: %s\n", formatExpiry(expiresAt))
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "owner of the key")
	create.Flags().DurationVar(&expiresIn, "expires-in", 0, "lifetime, e.g. 720h (default never)")

	revoke := &cobra.Command{
		Use:   "revoke <key>",
		Short: "Deactivate a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeyStore(cmd, func(ctx context.Context, s *admin.Store) error {
				if err := s.Revoke(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "key revoked")
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List active keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withKeyStore(cmd, func(ctx context.Context, s *admin.Store) error {
				keys, err := s.List(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), keys, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tCREATED\tEXPIRES")
					for _, k := range keys {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", k.ID, k.Name, k.CreatedAt.Format(time.RFC3339), formatExpiry(k.ExpiresAt))
					}
					tw.Flush()
				})
			})
		},
	}

	cmd.AddCommand(create, revoke, list)
	return cmd
}

func withKeyStore(cmd *cobra.Command, fn func(ctx context.Context, s *admin.Store) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !cfg.Postgres.Enabled() {
		return fmt.Errorf("admin keys need postgres; set postgres.host or PI_POSTGRES_HOST")
	}
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	store := admin.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, store)
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}
