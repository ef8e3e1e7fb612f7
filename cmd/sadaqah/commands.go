package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/smallbiznis/sadaqah/internal/clock"
	"github.com/smallbiznis/sadaqah/internal/config"
	"github.com/smallbiznis/sadaqah/internal/logger"
	"github.com/smallbiznis/sadaqah/internal/matchingpool"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	"github.com/smallbiznis/sadaqah/internal/ratelimit"
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	tierservice "github.com/smallbiznis/sadaqah/internal/tier/service"
	"github.com/smallbiznis/sadaqah/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const commandTimeout = 30 * time.Second

func tiersCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Inspect league and rank tables",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "Tiers file (defaults to TIERS_FILE, then the built-in tables)")

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the tier tables and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := loadTierTables(file)
			if err != nil {
				return err
			}
			return printTierTables(cmd.OutOrStdout(), tables)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "classify <points>",
		Short: "Show league and rank standing for a point total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("points must be an integer: %w", err)
			}
			tables, err := loadTierTables(file)
			if err != nil {
				return err
			}
			return printStandings(cmd.OutOrStdout(), tierservice.NewStatic(tables), points)
		},
	})

	return cmd
}

func loadTierTables(file string) (map[tierdomain.Kind]tierdomain.Table, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		file = config.Load().TiersFile
	}
	if file == "" {
		return tierdomain.DefaultTables(), nil
	}
	return config.LoadTierFile(file)
}

func printTierTables(out io.Writer, tables map[tierdomain.Kind]tierdomain.Table) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tTIER\tMIN\tMAX\tBENEFITS")
	for _, kind := range []tierdomain.Kind{tierdomain.KindLeague, tierdomain.KindRank} {
		table, ok := tables[kind]
		if !ok {
			continue
		}
		for _, t := range table.Tiers {
			upper := strconv.FormatInt(t.MaxPoints, 10)
			if t.IsTerminal() {
				upper = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n", kind, t.Name, t.MinPoints, upper, len(t.Benefits))
		}
	}
	return w.Flush()
}

func printStandings(out io.Writer, svc tierdomain.Service, points int64) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tTIER\tPROGRESS\tNEXT\tTO NEXT")
	for _, kind := range []tierdomain.Kind{tierdomain.KindLeague, tierdomain.KindRank} {
		standing, err := svc.Standing(kind, points)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		next := "-"
		if standing.Next != nil {
			next = standing.Next.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%d\n", kind, standing.Tier.Name, standing.Progress, next, standing.PointsToNext)
	}
	return w.Flush()
}

func poolCmd(logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Read the matching pool ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Print pool totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), *logLevel, func(ctx context.Context, pool pooldomain.Service) error {
				summary, err := pool.Summary(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "user <user-id>",
		Short: "Print one donor's pool contributions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), *logLevel, func(ctx context.Context, pool pooldomain.Service) error {
				summary, err := pool.UserSummary(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	})

	return cmd
}

// withPool starts only the pieces needed to reach the configured ledger
// store, runs fn and shuts everything down again.
func withPool(parent context.Context, level string, fn func(context.Context, pooldomain.Service) error) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg := config.Load()

	var pool pooldomain.Service
	opts := []fx.Option{
		fx.NopLogger,
		fx.Supply(logger.Level(level)),
		logger.Module,
		config.Module,
		clock.Module,
		ratelimit.Module,
		matchingpool.Module,
		fx.Populate(&pool),
	}
	if cfg.Ledger.Backend == config.LedgerBackendSQL {
		opts = append(opts, db.Module)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), commandTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx, pool)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
