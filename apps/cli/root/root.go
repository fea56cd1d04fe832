package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the VenueDesk operator CLI. Subcommands (auth, bootstrap, tenant) are attached here.
var rootCmd = &cobra.Command{
	Use:           "venuedesk",
	Short:         "VenueDesk operator CLI",
	Long:          "Operator utilities for VenueDesk (dev tokens, database bootstrap, tenant provisioning).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
