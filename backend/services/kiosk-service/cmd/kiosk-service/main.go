package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solarcharge/backend/libs/logging"
	app "solarcharge/backend/services/kiosk-service/internal/app"
	"solarcharge/backend/services/kiosk-service/internal/config"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kiosk-service",
		Short:         "Solar charging station kiosk",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults to $CONFIG_FILE)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve kiosk pages over HTTP and websocket",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset the shared session record to idle",
		RunE:  runReset,
	})
	root.AddCommand(&cobra.Command{
		Use:   "simulate-controller",
		Short: "Act as the charging controller against the shared store",
		RunE:  runSimulator,
	})
	return root
}

func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger("kiosk-service")
	if err != nil {
		return nil, nil, err
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		_ = logger.Sync()
		return nil, nil, err
	}
	return application, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	application, logger, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer logger.Sync() // best-effort flush
	defer application.Close()

	if err := application.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application stopped with error", zap.Error(err))
		return err
	}
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	application, logger, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer application.Close()

	if err := application.Store().Reset(cmd.Context()); err != nil {
		return err
	}
	logger.Info("session record reset")
	return nil
}

func runSimulator(cmd *cobra.Command, _ []string) error {
	application, logger, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer application.Close()

	if err := application.RunSimulator(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
