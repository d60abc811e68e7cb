package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ugcvideo/internal/app"
	"ugcvideo/internal/config"
	"ugcvideo/internal/http/handlers"
	httpapi "ugcvideo/internal/http/httpapi"
	"ugcvideo/internal/infra"
	"ugcvideo/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise api")
	}
	defer c.Close()

	if cfg.WebhookSecret == "" {
		logger.Warn().Msg("no webhook secret configured, status callbacks are accepted unauthenticated")
	}

	h := handlers.NewApp(c.Generations, c.Ledger, &logger)
	h.Ping = c.Pool.Ping
	if c.Files != nil {
		h.Static = c.Files.Handler()
	}

	var lookup middleware.CountryLookup
	if c.GeoIP != nil {
		lookup = c.GeoIP.CountryCode
	}

	router := httpapi.NewRouter(h, httpapi.Options{
		JWTSecret:          cfg.JWTSecret,
		WebhookSecret:      cfg.WebhookSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		DefaultLocale:      cfg.DefaultLocale,
		CountryLookup:      lookup,
		Logger:             logger,
	})

	go c.RunJanitor(ctx)
	if cfg.SweeperInline {
		go c.Sweeper().Run(ctx)
	}

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("dispatch_backend", cfg.DispatchBackend).
			Str("storage_driver", cfg.StorageDriver).
			Bool("redis", c.Redis != nil).
			Bool("sweeper_inline", cfg.SweeperInline).
			Msg("api listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
