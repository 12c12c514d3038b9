// Command tenantcms runs the TenantCMS API server and its admin tooling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tenantcms",
		Short:         "TenantCMS multi-tenant content API",
		Long:          "Run the TenantCMS API server, apply database migrations and manage tenants and users",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tenantcms.yaml", "path to the YAML config file")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		tenantCmd(&configPath),
		userCmd(&configPath),
		seedCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
