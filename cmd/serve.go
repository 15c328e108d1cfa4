package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pairline/pairline/internal/config"
	"github.com/pairline/pairline/internal/logging"
	"github.com/pairline/pairline/internal/server"
	"github.com/pairline/pairline/internal/signaling"
)

var (
	flagListen  string
	flagOrigins []string
	flagStatic  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Long: `Run the signaling server that pairs participants into rooms and relays
their negotiation messages.

Examples:
  pairline serve
  pairline serve --listen :9000
  pairline serve --origins https://pairline.example.com --static ./web/dist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	log := logging.New()

	cfg, err := config.Load(config.Options{
		ListenAddr:     flagListen,
		AllowedOrigins: flagOrigins,
		StaticDir:      flagStatic,
	})
	if err != nil {
		return err
	}

	hub := signaling.NewHub(log)
	go hub.Run()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(hub, cfg, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("starting signaling server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		hub.Stop()
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	hub.Stop()
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Listen address (default "+config.DefaultListenAddr+")")
	serveCmd.Flags().StringSliceVarP(&flagOrigins, "origins", "o", nil, "Allowed WebSocket origins (default: allow all)")
	serveCmd.Flags().StringVar(&flagStatic, "static", "", "Directory with a browser client build to serve")
}
