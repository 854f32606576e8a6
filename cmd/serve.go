package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mkerring/pagetrace/internal/api"
	"github.com/mkerring/pagetrace/internal/browser"
	"github.com/mkerring/pagetrace/internal/cache"
	"github.com/mkerring/pagetrace/internal/config"
	"github.com/mkerring/pagetrace/internal/observability"
	"github.com/mkerring/pagetrace/internal/session"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP capture service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.host", cmd.Flags().Lookup("host")); err != nil {
				return err
			}
			if err := viper.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.concurrency", cmd.Flags().Lookup("concurrency"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			if cfg.Browser.BrowsersPath != "" {
				os.Setenv("PLAYWRIGHT_BROWSERS_PATH", cfg.Browser.BrowsersPath)
			}

			// Listening for signals here keeps shutdown graceful: the HTTP
			// server drains in-flight requests before the browsers close.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			facade, err := browser.NewFacade(logger)
			if err != nil {
				return fmt.Errorf("failed to start browser driver: %w", err)
			}
			defer func() {
				if err := facade.Close(); err != nil {
					logger.Warn("Error closing browser driver", zap.Error(err))
				}
			}()

			metrics := observability.NewMetrics()

			store := cache.NewStore(cache.WithCounters(metrics.CacheHits, metrics.CacheMisses))
			if cfg.Cache.JanitorInterval > 0 {
				store.StartJanitor(cfg.Cache.JanitorInterval)
			}
			defer store.Close()

			runner := session.NewRunner(facade, cfg.Browser, logger)
			server := api.NewServer(cfg, runner, store, metrics, logger)

			logger.Info("Capture service ready",
				zap.String("addr", cfg.Server.Addr()),
				zap.Int("concurrency", cfg.Browser.Concurrency),
				zap.Bool("auth_enabled", cfg.Server.AuthToken != api.AuthDisabled),
			)
			return server.Run(ctx)
		},
	}

	serveCmd.Flags().String("host", "0.0.0.0", "Interface the HTTP server binds to. (Overrides config/env)")
	serveCmd.Flags().IntP("port", "p", 5000, "Port the HTTP server listens on. (Overrides config/env)")
	serveCmd.Flags().IntP("concurrency", "j", 0, "Maximum simultaneous browser sessions. (Overrides config/env)")

	return serveCmd
}

// newInstallCmd creates the `install` command, which downloads the managed
// browser builds the capture engines need.
func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Downloads the browser builds used by the capture engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			logger.Info("Installing browser builds. This may take a while.")
			if err := browser.Install(); err != nil {
				return fmt.Errorf("browser installation failed: %w", err)
			}
			logger.Info("Browser builds installed.")
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newInstallCmd())
}
