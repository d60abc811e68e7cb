package generation

import (
	"context"
	"fmt"
	"time"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/infra"
)

// SweepReport summarises one sweep.
type SweepReport struct {
	TimedOut int
	Refunded int
}

// SweepStale fails PENDING jobs that have not been touched within the stale
// window and then refunds everything eligible. A job moved on by a late
// webhook is no longer PENDING and is left alone.
func (s *Service) SweepStale(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := s.now().Add(-s.staleAfter)
	stale, err := s.repo.ListStalePending(ctx, cutoff, sweepBatch)
	if err != nil {
		return report, fmt.Errorf("list stale: %w", err)
	}
	message := fmt.Sprintf("Generation timed out after %d minutes", int(s.staleAfter/time.Minute))
	for _, g := range stale {
		ok, err := s.MarkFailed(ctx, g.ID, domain.Failure{Type: domain.ErrorTypeTimeout, Message: message}, domain.StatusPending)
		if err != nil {
			s.logger.Error().Err(err).Str("generation_id", g.ID).Msg("time out stale generation")
			continue
		}
		if ok {
			report.TimedOut++
		}
	}
	report.Refunded, err = s.AutoRefundSweep(ctx)
	return report, err
}

// Locker guards a sweep across instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

const sweepLockKey = "ugcvideo:sweep"

// Sweeper runs SweepStale on a fixed interval.
type Sweeper struct {
	svc      *Service
	lock     Locker
	interval time.Duration
	logger   *infra.Logger
}

// NewSweeper builds a sweeper. lock may be nil for single-instance deployments.
func NewSweeper(svc *Service, lock Locker, interval time.Duration, logger *infra.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}
	return &Sweeper{svc: svc, lock: lock, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.Once(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Once performs a single sweep, skipping it when another instance holds the lock.
func (w *Sweeper) Once(ctx context.Context) {
	if w.lock != nil {
		release, ok, err := w.lock.TryLock(ctx, sweepLockKey, w.interval)
		if err != nil {
			w.logger.Warn().Err(err).Msg("sweep lock unavailable, sweeping anyway")
		} else if !ok {
			w.logger.Debug().Msg("sweep held by another instance")
			return
		} else {
			defer release()
		}
	}
	start := time.Now()
	report, err := w.svc.SweepStale(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	w.logger.Info().
		Int("timed_out", report.TimedOut).
		Int("refunded", report.Refunded).
		Dur("duration", time.Since(start)).
		Msg("sweep completed")
}
