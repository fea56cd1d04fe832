package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
)

// Notes/constraints:
// - Both commands need an owner connection; "roles" needs a superuser because it creates a BYPASSRLS role.
// - Both are idempotent and safe to re-run after every deploy.

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap database resources (schema, row-level security, roles)",
	}

	cmd.AddCommand(schemaCommand())
	cmd.AddCommand(rolesCommand())
	return cmd
}

func schemaCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "schema",
		Short: "Apply tables and row-level security policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapSchema(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema bootstrap complete.")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_OWNER_URL"), "PostgreSQL owner connection string (defaults to DATABASE_OWNER_URL)")
	return c
}

func rolesCommand() *cobra.Command {
	var (
		databaseURL string
		cfg         persistence.RolesConfig
	)

	c := &cobra.Command{
		Use:   "roles",
		Short: "Create the application login role and the privileged provisioning role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.EnsureRoles(ctx, pool, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Roles ready. App: %s | Privileged: %s\n", cfg.AppRole, cfg.PrivilegedRole)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_OWNER_URL"), "PostgreSQL superuser connection string (defaults to DATABASE_OWNER_URL)")
	c.Flags().StringVar(&cfg.AppRole, "app-role", "venue_app", "Login role used by the API")
	c.Flags().StringVar(&cfg.AppPassword, "app-password", "", "Password to set for the app role (optional)")
	c.Flags().StringVar(&cfg.PrivilegedRole, "privileged-role", "venue_platform_admin", "NOLOGIN BYPASSRLS role granted to the app role; empty skips it")

	return c
}
