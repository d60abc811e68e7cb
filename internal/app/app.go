// Package app assembles the long-lived collaborators shared by the api,
// worker and ugcctl binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ugcvideo/internal/adapter/repo"
	"ugcvideo/internal/dispatch"
	"ugcvideo/internal/generation"
	"ugcvideo/internal/infra"
	"ugcvideo/internal/infra/credentials"
	"ugcvideo/internal/infra/geoip"
	"ugcvideo/internal/signedurl"
	"ugcvideo/internal/storage"
)

// Components is the wired dependency graph of one process.
type Components struct {
	Config      *infra.Config
	Logger      *infra.Logger
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Ledger      *repo.LedgerRepositoryPG
	Credentials *credentials.Store
	Generations *generation.Service
	// Locker is nil without Redis.
	Locker generation.Locker
	// Files is set for the local storage driver only.
	Files *storage.FileStore
	// URLStore is set when signed URLs are cached in process memory.
	URLStore *signedurl.MemoryStore
	GeoIP    *geoip.Resolver
}

// Build connects to the database (and Redis when configured) and wires the
// generation service. Close releases everything Build opened.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Components, error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	c := &Components{Config: cfg, Logger: logger, Pool: pool}

	c.Redis, err = infra.NewRedisClient(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	if c.Redis != nil {
		c.Locker = infra.NewRedisLock(c.Redis)
	}

	runner := infra.NewSQLRunner(pool, *logger)
	c.Ledger = repo.NewLedgerRepository(runner)
	c.Credentials = credentials.NewStore(runner)

	dispatcher, err := newDispatcher(ctx, cfg, c.Credentials, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	urls, err := c.newURLCache(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.GeoIP, err = geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip database unavailable, locale falls back to headers")
	}

	c.Generations = generation.NewService(generation.Options{
		Repo:            repo.NewGenerationRepository(runner),
		Dispatcher:      dispatcher,
		URLs:            urls,
		Logger:          logger,
		CallbackURL:     cfg.WebhookCallbackURL(),
		StaleAfter:      cfg.SweepStaleAfter,
		DispatchTimeout: cfg.DispatchTimeout,
	})
	return c, nil
}

// Sweeper returns a sweeper bound to the shared lock.
func (c *Components) Sweeper() *generation.Sweeper {
	return generation.NewSweeper(c.Generations, c.Locker, c.Config.SweepInterval, c.Logger)
}

// RunJanitor evicts expired in-memory signed URLs until ctx is done. It
// returns immediately when the cache lives in Redis.
func (c *Components) RunJanitor(ctx context.Context) {
	if c.URLStore == nil {
		return
	}
	c.URLStore.Run(ctx, c.Config.SignedURLJanitorInterval, c.Logger)
}

// Close releases the connections held by c.
func (c *Components) Close() {
	if c.GeoIP != nil {
		_ = c.GeoIP.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

func (c *Components) newURLCache(ctx context.Context) (*signedurl.Cache, error) {
	cfg := c.Config
	var signer signedurl.Signer
	switch cfg.StorageDriver {
	case "s3":
		s3Signer, err := signedurl.NewS3Signer(ctx, cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return nil, err
		}
		signer = s3Signer
	default:
		files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL, cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.Files = files
		signer = files
	}

	var store signedurl.Store
	if c.Redis != nil {
		store = signedurl.NewRedisStore(c.Redis)
	} else {
		c.URLStore = signedurl.NewMemoryStore(nil)
		store = c.URLStore
	}
	return signedurl.New(signedurl.Options{
		Signer:   signer,
		Store:    store,
		TTL:      cfg.SignedURLTTL,
		Validity: cfg.SignedURLValidity,
		Logger:   c.Logger,
	})
}

func newDispatcher(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger *infra.Logger) (dispatch.Dispatcher, error) {
	switch cfg.DispatchBackend {
	case infra.DispatchBackendN8N:
		secret, err := creds.Resolve(ctx, credentials.ProviderN8N, cfg.N8NWebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("resolve n8n secret: %w", err)
		}
		return dispatch.NewN8NClient(dispatch.N8NOptions{
			WebhookURL:     cfg.N8NWebhookURL,
			Secret:         secret,
			CallbackSecret: cfg.WebhookSecret,
			Logger:         logger,
			RequestTimeout: cfg.DispatchTimeout,
		})
	default:
		key, err := creds.Resolve(ctx, credentials.ProviderPythonBackend, cfg.PythonAPIKey)
		if err != nil {
			return nil, fmt.Errorf("resolve pipeline api key: %w", err)
		}
		if key == "" {
			logger.Warn().Msg("no pipeline api key configured, dispatches will fail")
		}
		return dispatch.NewPythonClient(dispatch.PythonOptions{
			APIKey:         key,
			BaseURL:        cfg.PythonBackendURL,
			Logger:         logger,
			RequestTimeout: cfg.DispatchTimeout,
		})
	}
}
