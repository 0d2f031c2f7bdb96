package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"stratus/internal/config"
	"stratus/internal/domain/models"
	"stratus/internal/queue"
	"stratus/internal/repository/postgres"
	"stratus/internal/service/cascade"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// deps bundles what every subcommand needs: config, logger and repositories
// over one shared pool.
type deps struct {
	cfg     *config.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	folders *postgres.RepositoryConfig
}

func openDeps(ctx context.Context) (*deps, func(), error) {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}

	d := &deps{cfg: cfg, logger: logger, pool: pool, folders: repoConfig}
	return d, pool.Close, nil
}

func newSweepCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the retroactive removal cascade over all accounts",
		Long: `sweep walks every user in ascending id order and drains their removal
cascade violations completely. Pass --user-id to resume from a given account;
the id of each swept user is logged so an aborted sweep can be resumed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, closeDeps, err := openDeps(ctx)
			if err != nil {
				return err
			}
			defer closeDeps()

			sweeper := cascade.NewSweeper(
				postgres.NewFolderRepository(d.folders),
				postgres.NewFileRepository(d.folders),
				postgres.NewUserRepository(d.folders),
				d.logger,
			)
			return sweeper.Sweep(ctx, userID)
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Start from this user id instead of the beginning")
	return cmd
}

func newDedupeCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Remove empty duplicate top-level folders from an incident window",
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			d, closeDeps, err := openDeps(ctx)
			if err != nil {
				return err
			}
			defer closeDeps()

			dedupe := cascade.NewDedupe(
				postgres.NewFolderRepository(d.folders),
				postgres.NewTransactionManager(d.pool),
				window,
				d.logger,
			)
			return dedupe.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Incident window start (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Incident window end (RFC 3339, exclusive)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one cascade reconciliation pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, closeDeps, err := openDeps(ctx)
			if err != nil {
				return err
			}
			defer closeDeps()

			if enqueue {
				client := asynq.NewClient(asynq.RedisClientOpt{
					Addr:     d.cfg.RedisAddr,
					Password: d.cfg.RedisPassword,
					DB:       d.cfg.RedisDB,
				})
				defer func() { _ = client.Close() }()
				return queue.EnqueueReconcile(ctx, client, "manual", 0)
			}

			metrics := cascade.NewMetrics(prometheus.NewRegistry())
			reconciler := cascade.NewReconciler(
				postgres.NewFolderRepository(d.folders),
				postgres.NewFileRepository(d.folders),
				postgres.NewJobExecutionRepository(d.folders),
				metrics,
				d.logger,
			)
			return reconciler.Run(ctx, "manual")
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Hand the run to the worker via the task queue instead of running in-process")
	return cmd
}

func newSizeCmd() *cobra.Command {
	var userID int64
	var includeTrash bool
	cmd := &cobra.Command{
		Use:   "size <folder-uuid>",
		Short: "Print the exact total size of a folder subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, closeDeps, err := openDeps(ctx)
			if err != nil {
				return err
			}
			defer closeDeps()

			estimator := cascade.NewStatsEstimator(postgres.NewFolderRepository(d.folders), d.logger)
			total, err := estimator.CalculateSize(ctx, args[0], userID, includeTrash)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), total)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Owning user id")
	cmd.Flags().BoolVar(&includeTrash, "include-trash", false, "Count trashed files as well")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "stats <folder-uuid>",
		Short: "Print budget-capped folder statistics with exactness flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, closeDeps, err := openDeps(ctx)
			if err != nil {
				return err
			}
			defer closeDeps()

			estimator := cascade.NewStatsEstimator(postgres.NewFolderRepository(d.folders), d.logger)
			stats, err := estimator.CalculateStats(ctx, args[0], userID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Owning user id")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func parseWindow(from, to string) (models.TimeWindow, error) {
	start, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("parse --from: %w", err)
	}
	until, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("parse --to: %w", err)
	}
	if !until.After(start) {
		return models.TimeWindow{}, fmt.Errorf("--to must be after --from")
	}
	return models.TimeWindow{Start: start, Until: until}, nil
}
