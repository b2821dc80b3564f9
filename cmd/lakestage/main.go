// Package main implements the lakestage binary.
//
// lakestage runs one collect-to-cleanse load for a single (year, month, day)
// partition and offers read-only views of the table catalog.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arkilian/lakestage/internal/app"
	"github.com/arkilian/lakestage/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
	logFormat  string
}

func rootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   "lakestage",
		Short: "Spec-driven collect-to-cleanse ETL stage",
		Long: `lakestage reads one raw source file, conforms it to a target schema using an
optional mapping and transformation spec, gates it with data quality rules
before and after transformation, and overwrites one (year, month, day)
partition of a catalog table under a schema change policy.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "Base directory for local state")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")

	cmd.AddCommand(runCmd(&g), catalogCmd(&g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lakestage version %s (commit: %s)\n", version, commit)
		},
	})
	return cmd
}

// loadConfig applies defaults, then the config file, then LAKESTAGE_*
// environment variables, then command line flags.
func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if g.configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(g.configPath)
		if err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)

	if g.dataDir != "" {
		cfg.DataDir = g.dataDir
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	return cfg, nil
}

// openApp loads configuration, installs the logger and opens shared resources.
func openApp(ctx context.Context, g *globalFlags) (*app.App, *slog.Logger, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
