package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jira_code_agent/internal/api"
	"jira_code_agent/internal/core"
	"jira_code_agent/src/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API together with a periodic sweeper that removes finished
sessions older than WORKFLOW_SWEEP_MAX_AGE.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	serverCfg := a.cfg.ServerConfig
	srv := &http.Server{
		Addr:         serverCfg.Addr,
		Handler:      api.NewRouter(a.engine, a.defaults, serverCfg.APIToken),
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", serverCfg.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		runSweeper(gctx, a.engine, a.cfg.WorkflowConfig.SweepInterval, a.cfg.WorkflowConfig.SweepMaxAge)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}

// runSweeper removes old finished sessions every interval until ctx is done
func runSweeper(ctx context.Context, engine *core.Engine, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hours := int(maxAge / time.Hour)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Sweep(ctx, hours); err != nil {
				logger.Warn().Err(err).Msg("Session sweep failed")
			}
		}
	}
}
