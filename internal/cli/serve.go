package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/legallex/djenwatch/internal/config"
	"github.com/legallex/djenwatch/internal/fetch"
	"github.com/legallex/djenwatch/internal/results"
	"github.com/legallex/djenwatch/internal/rules"
	"github.com/legallex/djenwatch/internal/run"
	"github.com/legallex/djenwatch/internal/sched"
	"github.com/legallex/djenwatch/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily scheduler and the consumer read API",
	Long: `Serve starts the long-running process: the daily trigger loop that runs one
fetch-and-match cycle per day at the configured local time, plus the HTTP API
over stored results. POST /api/v1/trigger starts a manual run; it is rejected
while another run is active.

Shutdown (SIGINT/SIGTERM) lets an in-flight run stop at its current page and
record its outcome before the process exits.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	trigger, err := config.ParseTriggerTime(cfg.Schedule.At)
	if err != nil {
		return err
	}

	resultStore := results.NewStore(cfg.Storage.ResultsDir, cfg.Storage.CacheTTL)
	runner := run.New(
		rules.NewStore(cfg.Storage.RulesFile),
		fetch.NewClient(cfg.API, logger),
		resultStore,
		logger,
	)
	scheduler := sched.New(runner, trigger, cfg.Location(), logger.With("component", "sched"))
	api := server.New(resultStore, scheduler, logger.With("component", "api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		scheduler.Run(ctx)
	}()

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("read API listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		stop()
		<-schedDone
		return fmt.Errorf("read API: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("read API shutdown", "err", err)
	}
	<-schedDone
	logger.Info("shutdown complete")
	return nil
}
