// Package generation runs the credit-metered generation lifecycle: creation
// with an atomic debit, dispatch, status updates, failure classification,
// refunds, retries and the stale-job sweep.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ugcvideo/internal/dispatch"
	"ugcvideo/internal/domain"
	"ugcvideo/internal/infra"
)

const (
	maxPageSize     = 50
	defaultPageSize = 12
	sweepBatch      = 200
	saveAttempts    = 3
)

// InsufficientCreditsError reports how many credits an action needs.
type InsufficientCreditsError struct {
	Required int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d", e.Required)
}

func (e *InsufficientCreditsError) Unwrap() error { return domain.ErrInsufficientCredits }

// URLSigner returns a fresh time-limited URL for a storage key.
type URLSigner interface {
	SignedURL(ctx context.Context, key string) (string, error)
}

// Options configures a Service.
type Options struct {
	Repo       domain.GenerationRepository
	Dispatcher dispatch.Dispatcher
	// URLs refreshes artifact URLs on reads. Optional.
	URLs   URLSigner
	Logger *infra.Logger
	// CallbackURL is handed to the processor for asynchronous updates.
	CallbackURL string
	StaleAfter  time.Duration
	// DispatchTimeout bounds one dispatch call. Zero means no extra bound.
	DispatchTimeout time.Duration
	Now             func() time.Time
}

// Service coordinates the generation lifecycle.
type Service struct {
	repo            domain.GenerationRepository
	dispatcher      dispatch.Dispatcher
	urls            URLSigner
	logger          *infra.Logger
	callbackURL     string
	staleAfter      time.Duration
	dispatchTimeout time.Duration
	now             func() time.Time
	newID           func() string
}

// NewService wires a Service with defaults for optional collaborators.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 20 * time.Minute
	}
	return &Service{
		repo:            opts.Repo,
		dispatcher:      opts.Dispatcher,
		urls:            opts.URLs,
		logger:          logger,
		callbackURL:     opts.CallbackURL,
		staleAfter:      staleAfter,
		dispatchTimeout: opts.DispatchTimeout,
		now:             now,
		newID:           uuid.NewString,
	}
}

// Create validates the input, debits the owner, stores the job and dispatches
// it. Dispatch failures leave the job FAILED rather than PENDING.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*domain.Generation, error) {
	params, err := in.Params()
	if err != nil {
		return nil, err
	}
	variant, ok := domain.Variant(in.AssetType())
	if !ok {
		return nil, fmt.Errorf("%w: unknown asset type %q", domain.ErrValidation, in.AssetType())
	}
	cost := variant.Cost(params.VideoQuality)

	g := &domain.Generation{
		ID:        s.newID(),
		UserID:    userID,
		AssetType: variant.Type,
		Params:    params,
		Attempt:   1,
	}
	if err := s.repo.CreateWithDebit(ctx, g, cost); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return nil, &InsufficientCreditsError{Required: cost}
		}
		return nil, fmt.Errorf("create generation: %w", err)
	}
	s.logger.Info().
		Str("generation_id", g.ID).
		Str("user_id", userID).
		Str("asset_type", string(g.AssetType)).
		Int("cost", cost).
		Msg("generation created")

	return s.dispatch(ctx, g)
}

// dispatch hands g to the processor and records the immediate outcome. The
// outcome is persisted even if the caller's context is cancelled meanwhile.
func (s *Service) dispatch(ctx context.Context, g *domain.Generation) (*domain.Generation, error) {
	persistCtx := context.WithoutCancel(ctx)
	callCtx := ctx
	if s.dispatchTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.dispatchTimeout)
		defer cancel()
	}

	res, err := s.dispatcher.Dispatch(callCtx, dispatch.Request{
		GenerationID: g.ID,
		UserID:       g.UserID,
		AssetType:    g.AssetType,
		Params:       g.Params,
		WebhookURL:   s.callbackURL,
	})
	switch {
	case err != nil:
		de := dispatch.AsError(err)
		s.logger.Warn().
			Err(err).
			Str("generation_id", g.ID).
			Str("error_type", string(de.Type)).
			Msg("dispatch failed")
		if _, ferr := s.MarkFailed(persistCtx, g.ID, domain.Failure{Type: de.Type, Message: de.Message}); ferr != nil {
			return nil, fmt.Errorf("record dispatch failure: %w", ferr)
		}
	case res.Completed:
		if _, cerr := s.repo.Complete(persistCtx, g.ID, res.Output); cerr != nil {
			return nil, fmt.Errorf("record dispatch result: %w", cerr)
		}
	case res.ExecutionID != "":
		execID := res.ExecutionID
		if _, uerr := s.update(persistCtx, g.ID, domain.GenerationUpdate{ExternalExecutionID: &execID}); uerr != nil {
			s.logger.Warn().Err(uerr).Str("generation_id", g.ID).Msg("store execution id")
		}
	}

	latest, err := s.repo.Get(persistCtx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("reload generation: %w", err)
	}
	return latest, nil
}

// MarkFailed classifies a failure on a job whose status is one of from,
// PENDING or PROCESSING when none is given. It reports whether the job
// changed.
func (s *Service) MarkFailed(ctx context.Context, id string, f domain.Failure, from ...domain.GenerationStatus) (bool, error) {
	if f.Type == "" {
		f.Type = domain.ErrorTypeSystem
	}
	if f.Message == "" {
		f.Message = f.Type.DefaultMessage()
	}
	ok, err := s.repo.MarkFailed(ctx, id, f, from...)
	if err != nil {
		return false, fmt.Errorf("mark %s failed: %w", id, err)
	}
	if ok {
		s.logger.Info().
			Str("generation_id", id).
			Str("error_type", string(f.Type)).
			Int("stage", f.Stage).
			Msg("generation failed")
	}
	return ok, nil
}

// ApplyUpdate merges a partial status update into the job. The update is
// rejected with ErrInvalidState when it would move the status backwards.
func (s *Service) ApplyUpdate(ctx context.Context, id string, u domain.GenerationUpdate) (*domain.Generation, error) {
	return s.update(ctx, id, u)
}

func (s *Service) update(ctx context.Context, id string, u domain.GenerationUpdate) (*domain.Generation, error) {
	for attempt := 1; ; attempt++ {
		g, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if u.Status != "" && !domain.CanTransition(g.Status, u.Status) {
			return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidState, g.Status, u.Status)
		}
		expected := g.UpdatedAt
		g.Apply(u)
		err = s.repo.Save(ctx, g, expected)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == saveAttempts {
			return nil, err
		}
	}
}
