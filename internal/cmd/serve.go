package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/remote-agent-terminal/ptyscreen/api/handlers"
	"github.com/remote-agent-terminal/ptyscreen/internal/db"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the capture history over HTTP",
	Long: `Expose the capture history as a read-only JSON API:

  GET /health
  GET /api/captures?limit=N
  GET /api/captures/:id
  GET /api/captures/:id/frame?width=W&height=H
  GET /api/captures/:id/cast`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (default: serve.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	repo, err := requireHistory()
	if err != nil {
		return err
	}
	defer db.CloseDB()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}

	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(repo, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("serving capture history")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
