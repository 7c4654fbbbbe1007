package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/schaermu/mindesktop/internal/config"
	"github.com/schaermu/mindesktop/internal/git"
	"github.com/schaermu/mindesktop/internal/notify"
	"github.com/schaermu/mindesktop/internal/shell"
	"github.com/schaermu/mindesktop/internal/site"
	"github.com/schaermu/mindesktop/internal/storage"
	"github.com/schaermu/mindesktop/internal/storage/migrate"
	"github.com/schaermu/mindesktop/internal/storage/prefs"
	"github.com/schaermu/mindesktop/internal/storage/sqlite"
)

//go:embed all:frontend/dist
var frontend embed.FS

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Root command flags
	startHidden bool
	devMode     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mindesktop",
	Short: "Show a web site as a desktop application with an offline copy",
	Long: `mindesktop shows a remote web site in a native window.

On request it shallow-clones a branch of a Git repository into the user data
directory and shows the cloned index.html instead, so the site stays usable
without a network connection. The last synced repository and branch are
remembered and synced again on the next launch.`,
	SilenceUsage: true,
	RunE:         runApp,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mindesktop %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/mindesktop/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "log format (text, json, auto)")

	// Window flags
	rootCmd.Flags().BoolVar(&startHidden, "hidden", false, "start with the window hidden")
	rootCmd.Flags().BoolVar(&devMode, "dev", false, "development mode: window chrome, assets from disk, live reload (also "+config.DebugEnv+"=TRUE)")

	// Add commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}

func runApp(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts := cfg.Resolve(devMode, startHidden)
	if opts.DevelopmentMode {
		logger.Info("development mode enabled", "assets", opts.AssetsPath, "preload", opts.PreloadPath)
	}

	db, params, err := openPrefs(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	store, err := newSiteStore(cfg, params, logger)
	if err != nil {
		return err
	}

	assets, err := fs.Sub(frontend, "frontend/dist")
	if err != nil {
		return fmt.Errorf("failed to load embedded frontend: %w", err)
	}

	icons := notify.NewIconResolver(cfg.Notify.IconCacheDir, cfg.Notify.DefaultIcon, cfg.Notify.FetchTimeout, logger)
	notifier := notify.New(icons, logger)
	defer notifier.Wait()

	app := shell.New(shell.Deps{
		Config:   cfg,
		Options:  opts,
		Assets:   assets,
		Store:    store,
		Params:   params,
		Notifier: notifier,
		Logger:   logger,
	})
	return app.Run()
}

// newSiteStore builds the site store with the configured fetch backend
func newSiteStore(cfg *config.Config, recorder site.Recorder, logger *slog.Logger) (*site.Store, error) {
	fetcher, err := git.NewFetcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}
	store := site.NewStore(cfg.Paths.UserDataDir, fetcher, logger)
	store.SetTimeout(cfg.Git.Timeout)
	store.SetRecorder(recorder)
	return store, nil
}

// openPrefs opens and migrates the preferences database
func openPrefs(cfg *config.Config) (*sql.DB, *prefs.Store, error) {
	db, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	if err := migrate.Up(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate preferences: %w", err)
	}
	return db, prefs.NewStore(db), nil
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	format := logFormat
	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "text"
		}
	}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// An explicit path must exist; the default one is optional.
	if cfgFile != "" {
		logger.Info("loading configuration", "path", cfgFile)
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		logConfig(logger, cfg)
		return cfg, nil
	}

	configPath, err := storage.ConfigPath(strings.ToLower(config.DefaultAppName))
	if err != nil {
		return nil, err
	}
	logger.Debug("loading configuration", "path", configPath)

	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return nil, err
	}
	logConfig(logger, cfg)
	return cfg, nil
}

func logConfig(logger *slog.Logger, cfg *config.Config) {
	logger.Debug("configuration loaded",
		"remote_url", cfg.App.RemoteURL,
		"user_data_dir", cfg.Paths.UserDataDir,
		"git_backend", cfg.Git.Backend,
		"auth", cfg.AuthMethod())
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
