package tenantcmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	tenants "github.com/zenGate-Global/venuedesk/domains/tenants/be"
	"github.com/zenGate-Global/venuedesk/domains/tenants/be/service"
	platformlogging "github.com/zenGate-Global/venuedesk/platform/go/logging"
	"github.com/zenGate-Global/venuedesk/platform/go/persistence"
)

type connFlags struct {
	databaseURL    string
	driver         string
	privilegedRole string
	logLevel       string
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Application connection string (defaults to DATABASE_URL)")
	cmd.Flags().StringVar(&f.driver, "driver", "auto", "Database backend: auto, pgx, pooler or http")
	cmd.Flags().StringVar(&f.privilegedRole, "privileged-role", "venue_platform_admin", "Role assumed for provisioning; empty disables elevation")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "Log level")
}

// open builds the same tenants module the API server uses, so provisioning
// from the CLI goes through the privileged runner.
func (f *connFlags) open(ctx context.Context) (*tenants.Module, func(), error) {
	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component:   "cli",
		Level:       f.logLevel,
		Development: true,
		Output:      os.Stderr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := persistence.Open(ctx, persistence.Config{ConnString: f.databaseURL, Driver: persistence.Kind(f.driver)}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	m := tenants.New(tenants.Config{
		DB:             db,
		TenantDB:       persistence.NewTenantDB(persistence.TenantDBConfig{DB: db, Logger: logger}),
		PrivilegedRole: f.privilegedRole,
		Logger:         logger,
	})
	return m, func() {
		db.Close()
		_ = logger.Sync()
	}, nil
}

// Command groups tenant-related helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant utilities (create/list)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		conn  connFlags
		input service.ProvisionInput
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Provision a tenant and its first admin user atomically",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			m, closeFn, err := conn.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := m.Service.Provision(ctx, input)
			if err != nil {
				return fmt.Errorf("provision tenant: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tenant provisioned. Tenant: %s (%s) | Admin user: %s (%s, %s)\n",
				out.Tenant.Slug, out.Tenant.ID, out.Admin.Email, out.Admin.ID, out.Admin.Role)
			return nil
		},
	}

	conn.register(c)
	c.Flags().StringVar(&input.Name, "name", "", "Tenant display name")
	c.Flags().StringVar(&input.AdminEmail, "admin-email", "", "Tenant admin user email")
	c.Flags().StringVar(&input.AdminFullName, "admin-full-name", "", "Tenant admin user full name")
	c.Flags().StringVar(&input.AdminRole, "admin-role", "", "Role of the first user (defaults to tenant_admin)")

	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("admin-email")
	_ = c.MarkFlagRequired("admin-full-name")

	return c
}

func listCommand() *cobra.Command {
	var conn connFlags

	c := &cobra.Command{
		Use:   "list",
		Short: "List every tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			m, closeFn, err := conn.open(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			items, err := m.Service.List(ctx)
			if err != nil {
				return fmt.Errorf("list tenants: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tNAME\tSTATUS\tCREATED")
			for _, t := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Slug, t.Name, t.Status, t.CreatedAt.Format("2006-01-02"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return nil
		},
	}

	conn.register(c)
	return c
}
