package domain

import (
	"context"
	"time"
)

// ListFilter selects a page of a user's finished generations.
type ListFilter struct {
	// AssetType filters by type; empty means all types.
	AssetType AssetType
	Page      int
	PageSize  int
}

// GenerationRepository persists generations. Operations that move credits
// do so in the same statement as the job mutation that causes them.
type GenerationRepository interface {
	// CreateWithDebit debits cost from the owner and inserts g as PENDING.
	// It returns ErrInsufficientCredits without inserting when the balance is short.
	CreateWithDebit(ctx context.Context, g *Generation, cost int) error
	Get(ctx context.Context, id string) (*Generation, error)
	GetForUser(ctx context.Context, id, userID string) (*Generation, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]Generation, int, error)
	MostRecentPending(ctx context.Context, userID string, assetType AssetType) (*Generation, error)
	ListCompletedVideos(ctx context.Context, userID string, limit int) ([]Generation, error)
	// Save writes the mutable fields of g when the stored row still carries
	// the given updatedAt, returning ErrConflict otherwise.
	Save(ctx context.Context, g *Generation, expectedUpdatedAt time.Time) error
	// Complete stores a synchronous result if the job is still non-terminal.
	Complete(ctx context.Context, id string, out StageOutput) (bool, error)
	// MarkFailed classifies a failure if the job is currently in one of from.
	MarkFailed(ctx context.Context, id string, f Failure, from ...GenerationStatus) (bool, error)
	// Refund credits amount to the owner and flags the job refunded, only
	// when it is FAILED, refundable and not yet refunded.
	Refund(ctx context.Context, id string, amount int) (bool, error)
	// RetryWithDebit debits cost and resets a FAILED, retryable job to PENDING
	// as a new attempt. When the failed attempt still has a refund due, refund
	// is credited in the same step.
	RetryWithDebit(ctx context.Context, id, userID string, cost, refund int) (*Generation, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Generation, error)
	ListRefundable(ctx context.Context, limit int) ([]Generation, error)
}

// LedgerRepository reads and adjusts credit balances outside of generation flows.
type LedgerRepository interface {
	Balance(ctx context.Context, userID string) (int, error)
	Grant(ctx context.Context, userID string, amount int, txType CreditTxType, description string) (int, error)
	History(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)
}
