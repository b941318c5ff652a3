// cmd/food-score/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcp-food-score/internal/config"
	"mcp-food-score/internal/logging"
	"mcp-food-score/internal/server"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "food-score",
		Short:         "Classify, score and enrich foods",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newScoreCmd(opts),
		newClassifyCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the config file and applies command-line overrides.
func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host    string
		address string
		port    int
		dbPath  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the food tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = host
			}
			// address is an alias for host
			if address != "" {
				cfg.Host = address
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("db-path") {
				cfg.DBPath = dbPath
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger.Info("config.loaded", zap.Stringer("config", cfg))

			return serve(cmd.Context(), cfg, logger)
		},
	}
	defaults := config.Default()
	cmd.Flags().StringVar(&host, "host", defaults.Host, "Host address")
	cmd.Flags().StringVar(&address, "address", "", "Address (alias for host)")
	cmd.Flags().IntVar(&port, "port", defaults.Port, "Port for HTTP transport")
	cmd.Flags().StringVar(&dbPath, "db-path", defaults.DBPath, "Database path")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	srv, err := server.NewFoodScoreServer(cfg, config.EnvFlags{Base: cfg.Flags}, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("server.signal", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("server.failed", zap.Error(runErr))
		}
	}

	logger.Info("server.shutting_down")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server.shutdown_error", zap.Error(err))
	}
	return runErr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "food-score version %s\n", server.Version)
		},
	}
}
