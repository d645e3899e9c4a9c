package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/internal/server"
)

var (
	servePort     int
	serveHostname string
	serveNoCORS   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentcore HTTP server",
	Long: `Start agentcore as a headless server that exposes the session API
and streams generation events over SSE and websocket.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false, "Disable CORS headers")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	log := logging.Component("serve")
	log.Info().Str("version", Version).Str("dir", a.dir).Msg("starting agentcore server")

	if err := a.defaults.Watch(ctx, a.dir, config.ConfigFiles(a.dir)...); err != nil {
		log.Warn().Err(err).Msg("config reload disabled")
	}

	cfg := server.DefaultConfig()
	cfg.Hostname = a.config.Server.Hostname
	cfg.Port = a.config.Server.Port
	if serveHostname != "" {
		cfg.Hostname = serveHostname
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	cfg.EnableCORS = !serveNoCORS

	srv, err := server.New(cfg, a.orch, a.bus)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
	return nil
}
