// Package signedurl memoizes presigned artifact URLs. Entries live for a TTL
// shorter than the URL validity so callers never receive a URL about to
// expire. The cache is not authoritative: losing it costs a re-sign.
package signedurl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ugcvideo/internal/infra"
)

// Signer produces a URL for key that stays valid for validity.
type Signer interface {
	Sign(ctx context.Context, key string, validity time.Duration) (string, error)
}

// Store holds signed URLs until they expire.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, url string, ttl time.Duration) error
}

// Options configures a Cache.
type Options struct {
	Signer   Signer
	Store    Store
	TTL      time.Duration
	Validity time.Duration
	Logger   *infra.Logger
}

// Cache signs storage keys and remembers the result.
type Cache struct {
	signer   Signer
	store    Store
	ttl      time.Duration
	validity time.Duration
	logger   *infra.Logger
}

// New validates the window and builds a Cache. A nil Store means an
// unbounded in-memory store on the wall clock.
func New(opts Options) (*Cache, error) {
	if opts.Signer == nil {
		return nil, errors.New("signedurl: signer is required")
	}
	if opts.TTL <= 0 || opts.Validity <= 0 || opts.TTL >= opts.Validity {
		return nil, fmt.Errorf("signedurl: ttl %s must be positive and shorter than validity %s", opts.TTL, opts.Validity)
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore(time.Now)
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}
	return &Cache{
		signer:   opts.Signer,
		store:    store,
		ttl:      opts.TTL,
		validity: opts.Validity,
		logger:   logger,
	}, nil
}

// SignedURL returns a cached URL for key or signs a new one. Store failures
// degrade to signing on every call.
func (c *Cache) SignedURL(ctx context.Context, key string) (string, error) {
	if url, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("signed url cache read")
	} else if ok {
		return url, nil
	}
	url, err := c.signer.Sign(ctx, key, c.validity)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, url, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("signed url cache write")
	}
	return url, nil
}

type entry struct {
	url       string
	expiresAt time.Time
}

// MemoryStore is a process-local Store with lazy eviction on read and an
// explicit Sweep for entries nobody reads again.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore builds an empty store using now as its clock.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: map[string]entry{}, now: now}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.url, true, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, url string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{url: url, expiresAt: m.now().Add(ttl)}
	return nil
}

// Len reports the number of entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps on every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration, logger *infra.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 && logger != nil {
				logger.Debug().Int("removed", removed).Msg("signed url cache swept")
			}
		}
	}
}
