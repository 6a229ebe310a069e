package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ThreatScanner/internal/app"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "threatscanner",
	Short: "Collect security feeds and flag likely threats",
	Long: `threatscanner pulls articles from RSS feeds, security forums and
threat-intel APIs, scores each one with a text classifier and raises
alerts for confident threats.

Configuration comes from a YAML file (--config or THREAT_SCANNER_CONFIG)
with environment variables taking precedence.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command and cancels on SIGINT or SIGTERM.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = os.Getenv("THREAT_SCANNER_CONFIG")
	}
	cfg = config.LoadFrom(path)
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

// withApp builds the application, loads the model when needModel is set and
// closes everything once fn returns.
func withApp(ctx context.Context, needModel bool, fn func(*app.Application) error) (err error) {
	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("shutdown", "error", cerr)
		}
	}()

	if needModel {
		if err := application.Init(ctx); err != nil {
			logger.Warn("continuing without a model", "error", err)
		}
	}
	return fn(application)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(threatsCmd)
}
