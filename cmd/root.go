package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"appframe/internal/config"
	"appframe/internal/logging"
	"appframe/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "appframe",
	Short: "Developer CLI for the appframe client library",
	Long: `appframe drives the client library from the command line.

Issue requests against the configured base URL, inspect and change the
persisted application status, and browse the request history.

Examples:
  appframe get /items -d q="a b"
  appframe post /items -d x=1 --json
  appframe status set loggedin
  appframe history`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show response headers and debug logs")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/appframe/config.toml)")
}

// env bundles what every command needs.
type env struct {
	cfg    config.Config
	logger *logging.Logger
	store  storage.Store
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(os.Stderr, level)

	store, err := storage.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	return &env{cfg: cfg, logger: logger, store: store}, nil
}

func (e *env) Close() {
	_ = e.store.Close()
}
