package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/app"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	applog "github.com/vovakirdan/wirechat-relay/internal/log"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "server <port>",
		Short: "Run the line chat relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// past argument parsing, errors are runtime failures
			cmd.SilenceUsage = true
			return run(cmd.Context(), args[0], configPath, logLevel)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (default ./relay.yaml)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, port, configPath, logLevel string) error {
	bootLogger := applog.New(logLevel)

	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		bootLogger.Error().Err(err).Str("path", path).Msg("failed to load config")
		return err
	}
	cfg.UpdateFrom(config.Config{Port: port, LogLevel: logLevel})

	logger := applog.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}

	logger.Info().
		Str("addr", cfg.ListenAddr()).
		Str("http_addr", cfg.HTTPAddr).
		Int("max_clients", cfg.MaxClients).
		Str("config", path).
		Msg("starting relay")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
