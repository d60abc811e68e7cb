package generation

import (
	"context"
	"errors"
	"fmt"

	"ugcvideo/internal/domain"
)

// RefundResult reports the outcome of a refund attempt.
type RefundResult struct {
	Success         bool
	CreditsRefunded int
}

// ProcessRefund restores the credits of a failed, refundable job exactly
// once. Ineligible or already refunded jobs yield Success false.
func (s *Service) ProcessRefund(ctx context.Context, id string) (RefundResult, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return RefundResult{}, err
	}
	if !g.RefundDue() {
		return RefundResult{}, nil
	}
	variant, ok := domain.Variant(g.AssetType)
	if !ok {
		return RefundResult{}, fmt.Errorf("refund %s: unknown asset type %q", id, g.AssetType)
	}
	amount := variant.RefundAmount(g)
	applied, err := s.repo.Refund(ctx, id, amount)
	if err != nil {
		return RefundResult{}, fmt.Errorf("refund %s: %w", id, err)
	}
	if !applied {
		return RefundResult{}, nil
	}
	s.logger.Info().
		Str("generation_id", id).
		Str("user_id", g.UserID).
		Str("error_type", string(g.ErrorType)).
		Int("credits", amount).
		Msg("credits refunded")
	return RefundResult{Success: true, CreditsRefunded: amount}, nil
}

// RequestRefund is the owner-initiated refund. Each reason a refund cannot
// happen is reported with its own error.
func (s *Service) RequestRefund(ctx context.Context, userID, id string) (RefundResult, error) {
	g, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return RefundResult{}, err
	}
	switch {
	case g.Status != domain.StatusFailed:
		return RefundResult{}, domain.ErrInvalidState
	case !g.IsRefundable:
		return RefundResult{}, domain.ErrNotRefundable
	case !g.RefundDue():
		return RefundResult{}, domain.ErrAlreadyRefunded
	}
	res, err := s.ProcessRefund(ctx, id)
	if err != nil {
		return RefundResult{}, err
	}
	if !res.Success {
		// Lost the race against the sweeper or a parallel request.
		return RefundResult{}, domain.ErrAlreadyRefunded
	}
	return res, nil
}

// AutoRefundSweep refunds every eligible job. A failing row is logged and
// skipped.
func (s *Service) AutoRefundSweep(ctx context.Context) (int, error) {
	items, err := s.repo.ListRefundable(ctx, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list refundable: %w", err)
	}
	refunded := 0
	for _, g := range items {
		if ctx.Err() != nil {
			return refunded, ctx.Err()
		}
		res, err := s.ProcessRefund(ctx, g.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("generation_id", g.ID).Msg("auto refund failed")
			continue
		}
		if res.Success {
			refunded++
		}
	}
	return refunded, nil
}

// Retry charges the owner again and re-dispatches a failed job with its
// stored parameters. A refund the failed attempt is still owed is settled
// against the new charge.
func (s *Service) Retry(ctx context.Context, userID, id string) (*domain.Generation, error) {
	g, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if g.Status != domain.StatusFailed {
		return nil, domain.ErrInvalidState
	}
	if !g.CanRetry {
		return nil, domain.ErrNotRetryable
	}
	variant, ok := domain.Variant(g.AssetType)
	if !ok {
		return nil, fmt.Errorf("retry %s: unknown asset type %q", id, g.AssetType)
	}
	cost := variant.Cost(g.Params.VideoQuality)
	refund := 0
	if g.RefundDue() {
		refund = variant.RefundAmount(g)
	}

	reset, err := s.repo.RetryWithDebit(ctx, id, userID, cost, refund)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return nil, &InsufficientCreditsError{Required: cost - refund}
		}
		return nil, err
	}
	s.logger.Info().
		Str("generation_id", id).
		Str("user_id", userID).
		Int("cost", cost).
		Int("refund", refund).
		Int("attempt", reset.Attempt).
		Msg("generation retried")
	return s.dispatch(ctx, reset)
}
