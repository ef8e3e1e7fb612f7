package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sadaqah/internal/clock"
	"github.com/smallbiznis/sadaqah/internal/config"
	"github.com/smallbiznis/sadaqah/internal/donation"
	"github.com/smallbiznis/sadaqah/internal/matchingpool"
	"github.com/smallbiznis/sadaqah/internal/metricspush"
	"github.com/smallbiznis/sadaqah/internal/migration"
	"github.com/smallbiznis/sadaqah/internal/observability"
	"github.com/smallbiznis/sadaqah/internal/ratelimit"
	"github.com/smallbiznis/sadaqah/internal/server"
	"github.com/smallbiznis/sadaqah/internal/tier"
	"github.com/smallbiznis/sadaqah/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const appName = "sadaqah"

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Donation rewards and sadaqah matching pool service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for operator commands (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	cmd.AddCommand(tiersCmd())
	cmd.AddCommand(poolCmd(&logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, version)
		},
	})

	return cmd
}

func serve() error {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,

		// Functional Domains
		tier.Module,
		matchingpool.Module,
		donation.Module,

		metricspush.Module,
		server.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
