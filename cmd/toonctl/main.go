package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toon-shelf/catalog"
	"toon-shelf/config"
	"toon-shelf/logging"
	"toon-shelf/scraper"
	"toon-shelf/session"
	"toon-shelf/storage"
)

var (
	// Global flags
	verbose bool
	envFile string
	backend string
	origin  string
	timeout time.Duration

	logger       *zap.Logger
	syncLogs     func()
	store        storage.Backend
	catalogCache *catalog.Cache
	sess         *session.Session
)

var rootCmd = &cobra.Command{
	Use:   "toonctl",
	Short: "Inspect and edit Toon Shelf user state",
	Long: `toonctl works on the same key-value store the site uses.

It loads the catalog the way a page load does and exposes favorites,
watch history, playback progress and comments for one origin.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if backend != "" {
			cfg.Backend = backend
		}
		if origin != "" {
			cfg.Origin = origin
		}

		logger, syncLogs, err = logging.New(logging.Options{Level: cfg.LogLevel, Verbose: verbose, File: cfg.LogFile})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		opts := cfg.StorageOptions()
		opts.Logger = logger.Named("storage")
		store, err = storage.Open(opts)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}

		catalogURL, err := cfg.CatalogURL()
		if err != nil {
			return err
		}
		catalogCache = catalog.NewCache(store,
			scraper.NewScraper(cfg.FetchTimeout, logger.Named("scraper")),
			catalogURL,
			catalog.WithTTL(cfg.CatalogTTL),
			catalog.WithLogger(logger.Named("catalog")),
		)
		sess = session.New(store, catalogCache, session.WithLogger(logger))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close store", zap.Error(err))
			}
		}
		if syncLogs != nil {
			syncLogs()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file first")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Store backend: sqlite, file or memory (default from STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&origin, "origin", "", "Store origin (default from STORE_ORIGIN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Catalog load timeout")

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(favCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(commentsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openCatalog loads the catalog snapshot into the session.
func openCatalog(cmd *cobra.Command) []catalog.Entry {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return sess.Open(ctx)
}

func parseID(raw string) (catalog.EntryID, error) {
	id, err := catalog.ParseEntryID(raw)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: 0", catalog.ErrInvalidID)
	}
	return id, nil
}

func printEntries(cmd *cobra.Command, entries []catalog.Entry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No entries")
		return
	}
	for _, e := range entries {
		year := "-"
		if e.Year != nil {
			year = fmt.Sprint(*e.Year)
		}
		rating := "-"
		if e.Rating != nil {
			rating = fmt.Sprintf("%.1f", *e.Rating)
		}
		fmt.Fprintf(out, "%6d  %-32s  %4s  %4s  %s\n", e.ID, e.Title, year, rating, e.Category)
	}
}
