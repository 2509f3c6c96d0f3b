package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZIMkaRU/bfx-report/internal/app"
	"github.com/ZIMkaRU/bfx-report/pkg/config"
	"github.com/ZIMkaRU/bfx-report/pkg/logger"
)

var (
	syncCollections []string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single full synchronization and exit",
	Long: `Execute one full synchronization pass over all registered
collections and exit.

Examples:
  bfx-report sync                                 # Sync everything
  bfx-report sync --collections trades,ledgers    # Sync a subset`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringSliceVarP(&syncCollections, "collections", "c", nil, "Collections to sync (default all)")
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(syncCollections) > 0 {
		cfg.Sync.Collections = syncCollections
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	application := app.New(cfg, log)
	if err := application.Initialize(); err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return err
	}
	defer application.Stop()

	log.Info("Starting one-shot synchronization")

	if err := application.GetSyncer().RunFullSync(application.GetContext()); err != nil {
		log.WithError(err).Error("Synchronization failed")
		return err
	}

	log.Info("Synchronization finished")
	return nil
}
