// Command nputop-web serves NPU tab models over HTTP and WebSocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skobkin/nputop-web/internal/app"
	"github.com/skobkin/nputop-web/internal/config"
	"github.com/skobkin/nputop-web/internal/version"
)

var (
	buildVersion = "dev"
	buildCommit  = ""
	buildTime    = ""
)

var rootCmd = &cobra.Command{
	Use:   "nputop-web",
	Short: "Web dashboard backend for NPU telemetry",
	Long: "nputop-web discovers NPUs, accepts telemetry snapshots and streams the derived tabs.\n" +
		"Configuration is read from APP_* environment variables.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		info := version.Current()
		logger.Info("starting nputop-web",
			"version", info.Version,
			"commit", info.Commit,
			"go_version", info.GoVersion,
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := app.Run(ctx, logger, cfg); err != nil {
			logger.Error("application error", "err", err)
			return err
		}
		return nil
	},
}

func main() {
	version.Set(version.Info{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildTime: buildTime,
	})
	rootCmd.Version = version.Current().Version

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("nputop-web exited", "err", err)
		os.Exit(1)
	}
}
