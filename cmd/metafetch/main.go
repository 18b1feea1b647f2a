package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelsos/metafetch/internal/async"
	"github.com/kelsos/metafetch/internal/config"
	"github.com/kelsos/metafetch/internal/logger"
	"github.com/kelsos/metafetch/internal/metadata"
	"github.com/kelsos/metafetch/internal/transport"
	"github.com/kelsos/metafetch/internal/tui"
	"github.com/kelsos/metafetch/internal/utils"
)

type options struct {
	configPath string
	timeout    time.Duration
	userAgent  string
	maxBody    int64
	showTUI    bool
}

// loadConfig layers defaults, environment, the optional config file and flags, in that order
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	if opts.configPath != "" {
		if err := cfg.LoadFromFile(opts.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = opts.userAgent
	}
	if flags.Changed("max-body") {
		cfg.MaxBodyBytes = opts.maxBody
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fetch(ctx context.Context, cfg *config.Config, urls []string, showTUI bool) ([]async.Result, error) {
	session := transport.NewSession(cfg)

	if !showTUI {
		tm := async.NewTaskManager(session, async.WithDiagnostics(metadata.LogDiagnostics()))
		defer tm.Stop()
		return tm.FetchAll(ctx, urls)
	}

	logPath, err := logger.InitFileOnly(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file logging: %w", err)
	}
	defer logger.Close()

	newManager := func(opts ...async.ManagerOption) *async.TaskManager {
		return async.NewTaskManager(session, opts...)
	}
	monitor := tui.NewFetchMonitor(newManager, cfg.MaxBodyBytes, logPath)
	if err := monitor.Start(); err != nil {
		return nil, err
	}
	return monitor.Run(ctx, urls)
}

func main() {
	utils.LoadEnvironment()
	logger.Init()

	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "metafetch [flags] URL...",
		Short:         "Fetch page metadata for one or more URLs",
		Long:          `metafetch issues one GET request per URL and reports the metadata or the error each fetch ended with.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := fetch(ctx, cfg, args, opts.showTUI)
			if err != nil {
				return err
			}

			if failed := writeResults(cmd.OutOrStdout(), results); failed > 0 {
				return fmt.Errorf("%d of %d fetches failed", failed, len(results))
			}
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the metafetch version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "metafetch", config.Version)
		},
	}

	defaults := config.NewConfig()
	rootCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", defaults.Timeout, "Request timeout")
	rootCmd.Flags().StringVarP(&opts.userAgent, "user-agent", "u", defaults.UserAgent, "User-Agent header sent with every request")
	rootCmd.Flags().Int64Var(&opts.maxBody, "max-body", defaults.MaxBodyBytes, "Maximum number of body bytes read per URL")
	rootCmd.Flags().BoolVar(&opts.showTUI, "tui", false, "Show live progress in a terminal UI")

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
