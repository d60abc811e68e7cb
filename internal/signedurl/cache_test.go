package signedurl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type countingSigner struct {
	mu       sync.Mutex
	calls    int
	validity time.Duration
	err      error
}

func (s *countingSigner) Sign(ctx context.Context, key string, validity time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.validity = validity
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("https://signed.example.com/%s?v=%d", key, s.calls), nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("store down")
}

func (brokenStore) Set(ctx context.Context, key, url string, ttl time.Duration) error {
	return errors.New("store down")
}

func TestNewRejectsBadWindow(t *testing.T) {
	signer := &countingSigner{}
	tests := []struct {
		name          string
		ttl, validity time.Duration
	}{
		{name: "zero ttl", ttl: 0, validity: time.Hour},
		{name: "ttl equals validity", ttl: time.Hour, validity: time.Hour},
		{name: "ttl exceeds validity", ttl: 2 * time.Hour, validity: time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(Options{Signer: signer, TTL: tt.ttl, Validity: tt.validity}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := New(Options{TTL: time.Minute, Validity: time.Hour}); err == nil {
		t.Fatalf("expected error without signer")
	}
}

func TestCacheReusesUntilTTL(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	signer := &countingSigner{}
	cache, err := New(Options{
		Signer:   signer,
		Store:    NewMemoryStore(clk.now),
		TTL:      50 * time.Minute,
		Validity: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	first, err := cache.SignedURL(ctx, "videos/a.mp4")
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if signer.validity != time.Hour {
		t.Fatalf("validity = %s, want 1h", signer.validity)
	}

	clk.t = clk.t.Add(49 * time.Minute)
	again, _ := cache.SignedURL(ctx, "videos/a.mp4")
	if again != first || signer.calls != 1 {
		t.Fatalf("expected cached url, calls = %d", signer.calls)
	}

	clk.t = clk.t.Add(time.Minute)
	fresh, _ := cache.SignedURL(ctx, "videos/a.mp4")
	if fresh == first || signer.calls != 2 {
		t.Fatalf("expected re-sign at ttl, calls = %d", signer.calls)
	}

	if _, err := cache.SignedURL(ctx, "videos/b.mp4"); err != nil || signer.calls != 3 {
		t.Fatalf("distinct keys must sign separately, calls = %d", signer.calls)
	}
}

func TestCacheSurvivesStoreFailure(t *testing.T) {
	signer := &countingSigner{}
	cache, err := New(Options{Signer: signer, Store: brokenStore{}, TTL: time.Minute, Validity: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := cache.SignedURL(context.Background(), "k"); err != nil {
			t.Fatalf("SignedURL: %v", err)
		}
	}
	if signer.calls != 2 {
		t.Fatalf("calls = %d, want 2", signer.calls)
	}
}

func TestCachePropagatesSignerError(t *testing.T) {
	signer := &countingSigner{err: errors.New("no credentials")}
	store := NewMemoryStore(nil)
	cache, _ := New(Options{Signer: signer, Store: store, TTL: time.Minute, Validity: time.Hour})
	if _, err := cache.SignedURL(context.Background(), "k"); err == nil {
		t.Fatalf("expected error")
	}
	if store.Len() != 0 {
		t.Fatalf("failed signatures must not be cached")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clk.now)
	ctx := context.Background()
	_ = store.Set(ctx, "short", "u1", time.Minute)
	_ = store.Set(ctx, "long", "u2", time.Hour)

	clk.t = clk.t.Add(2 * time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := store.Get(ctx, "long"); !ok {
		t.Fatalf("long entry evicted early")
	}
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}
}

func TestMemoryStoreRunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Millisecond, nil)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
