package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"ugcvideo/internal/app"
	"ugcvideo/internal/config"
	"ugcvideo/internal/infra"
)

// The worker runs the stale-job sweeper and the signed URL janitor. Several
// workers may run side by side; with Redis configured only one sweeps at a time.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: init failed")
	}
	defer c.Close()

	if c.Locker == nil {
		logger.Warn().Msg("worker: no redis configured, run a single sweeper instance")
	}
	logger.Info().
		Dur("interval", cfg.SweepInterval).
		Dur("stale_after", cfg.SweepStaleAfter).
		Msg("worker started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Sweeper().Run(gctx)
		return nil
	})
	g.Go(func() error {
		c.RunJanitor(gctx)
		return nil
	})
	_ = g.Wait()

	logger.Info().Msg("worker stopped")
}
