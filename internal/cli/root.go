// Package cli provides the command-line interface for portalsync.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/portalsync/internal/config"
	"github.com/raphaelgruber/portalsync/internal/db"
	"github.com/raphaelgruber/portalsync/internal/metrics"
	"github.com/raphaelgruber/portalsync/internal/service"
	"github.com/raphaelgruber/portalsync/internal/warehouse"
)

// Store annotations declare which stores a command needs opened.
const (
	storesAnnotation = "stores"
	storeDocuments   = "documents"
	storeRelational  = "relational"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and store handles
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
	docs     *db.Client
	store    *warehouse.Store
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "portalsync",
	Short: "Mirror portal documents into the reporting database",
	Long: `portalsync copies locations, jobs and media from the portal's document
store (SurrealDB) into a relational database (Postgres or SQLite) used for
reporting. Documents are normalized, media durations are derived, and every
record is upserted so runs can be repeated safely.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		needs := cmd.Annotations[storesAnnotation]
		if needs == "" {
			return nil
		}

		cfg = config.Load()
		if err := cfg.Validate(false); err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		ctx := cmd.Context()
		if strings.Contains(needs, storeDocuments) {
			var err error
			docs, err = db.NewClient(ctx, cfg.SurrealDB(), logger)
			if err != nil {
				return fmt.Errorf("connect to document store: %w", err)
			}
		}
		if strings.Contains(needs, storeRelational) {
			var err error
			store, err = warehouse.Open(ctx, cfg.Warehouse(), logger)
			if err != nil {
				return fmt.Errorf("open relational store: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeStores()
	},
}

func closeStores() {
	if docs != nil {
		if err := docs.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close document store: %v\n", err)
		}
		docs = nil
	}
	if store != nil {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close relational store: %v\n", err)
		}
		store = nil
	}
	if closeLog != nil {
		_ = closeLog()
		closeLog = nil
	}
}

// needsStores annotates cmd with the stores it uses.
func needsStores(cmd *cobra.Command, stores ...string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[storesAnnotation] = strings.Join(stores, ",")
	return cmd
}

// newSyncService wires the orchestrator over the opened stores.
func newSyncService() (*service.SyncService, error) {
	return service.NewSyncService(docs, store, cfg.SyncOptions(metrics.NewCollector()), logger)
}

// Execute adds all child commands to the root command and runs it with ctx.
// Stores are closed even when a command fails.
func Execute(ctx context.Context) error {
	defer closeStores()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(needsStores(syncCmd, storeDocuments, storeRelational))
	rootCmd.AddCommand(needsStores(statsCmd, storeRelational))
	rootCmd.AddCommand(needsStores(historyCmd, storeRelational))
	rootCmd.AddCommand(needsStores(runsCmd, storeRelational))
	rootCmd.AddCommand(needsStores(migrateCmd, storeRelational))
	rootCmd.AddCommand(needsStores(seedCmd, storeDocuments))
}
