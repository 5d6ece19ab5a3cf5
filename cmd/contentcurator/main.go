package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ContentCurator/internal/app"
	"ContentCurator/internal/config"
	"ContentCurator/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "contentcurator",
	Short: "Discover, extract and score content with evolving queries",
	Long: `contentcurator searches several content sources for a seed query,
extracts and scores what it finds, and refines the query over a few
iterations. Results are written as JSON and a markdown report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (defaults to $CONTENT_CURATOR_CONFIG)")
	rootCmd.AddCommand(runCmd, watchCmd, cacheCmd, reportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (config.Config, string, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	if path == "" {
		return config.Load(), "", nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, path, nil
}

// newApplication loads the config, applies flag overrides and wires the
// application. It also returns the config file path, if any.
func newApplication(ctx context.Context, mutate func(*config.Config)) (*app.Application, string, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	if mutate != nil {
		mutate(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("invalid settings: %w", err)
		}
	}
	capture := &logging.Capture{}
	logger := logging.New(cfg.Logging.Level, capture)

	application, err := app.New(ctx, cfg, logger, capture)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return nil, "", err
	}
	return application, path, nil
}
