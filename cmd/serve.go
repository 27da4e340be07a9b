package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zdunecki/onboarding/pkg/server"
	"github.com/zdunecki/onboarding/pkg/wizard"
)

var serveSessionTTL time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the onboarding wizard as an HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Server.Port
		watch := cfg.Server.Watch

		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		dir := catalogPath()
		if watch && dir == "" {
			logger.Warn("No catalog directory to watch, serving the built-in catalog")
			watch = false
		}

		srv, err := server.New(server.Options{
			Registry:   reg,
			CatalogDir: dir,
			Watch:      watch,
			NewAdapter: func(token string) wizard.Adapter {
				if token == "" {
					token = cfg.API.Token
				}
				return newAdapter(logger, token)
			},
			SessionTTL: serveSessionTTL,
			Logger:     logger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx, port)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP port to listen on")
	serveCmd.Flags().Bool("watch", false, "Reload the catalog when its files change")
	serveCmd.Flags().DurationVar(&serveSessionTTL, "session-ttl", time.Hour, "Drop wizard runs idle for longer (0 keeps them)")
	rootCmd.AddCommand(serveCmd)
}
