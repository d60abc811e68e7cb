// Package memstore keeps generations and balances in memory. It follows the
// same atomicity rules as the PostgreSQL repositories and backs tests and
// local runs without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ugcvideo/internal/domain"
)

// Store implements domain.GenerationRepository and domain.LedgerRepository.
type Store struct {
	mu sync.Mutex

	users       map[string]int
	generations map[string]domain.Generation
	ledger      []domain.CreditTransaction

	now func() time.Time
}

// New returns an empty store stamping rows with time.Now.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty store using now for timestamps.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		users:       map[string]int{},
		generations: map[string]domain.Generation{},
		now:         now,
	}
}

// AddUser registers a user with an opening balance.
func (s *Store) AddUser(userID string, credits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = credits
}

// Put stores g as is. Tests use it to seed state.
func (s *Store) Put(g domain.Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = s.now()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = g.UpdatedAt
	}
	if g.Attempt == 0 {
		g.Attempt = 1
	}
	s.generations[g.ID] = g
}

func (s *Store) CreateWithDebit(ctx context.Context, g *domain.Generation, cost int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.users[g.UserID]
	if !ok || balance < cost {
		return domain.ErrInsufficientCredits
	}
	s.users[g.UserID] = balance - cost

	now := s.now()
	g.Status = domain.StatusPending
	g.Attempt, g.RefundedAttempt = 1, 0
	g.CreatedAt, g.UpdatedAt = now, now
	s.generations[g.ID] = *g
	s.record(g.UserID, domain.CreditTxUsage, -cost, g.ID, "generation "+string(g.AssetType))
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}

func (s *Store) GetForUser(ctx context.Context, id, userID string) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok || g.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}

func (s *Store) List(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Generation, int, error) {
	items := s.filter(func(g domain.Generation) bool {
		return g.UserID == userID &&
			g.Status.Terminal() &&
			(filter.AssetType == "" || g.AssetType == filter.AssetType)
	})
	total := len(items)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func (s *Store) MostRecentPending(ctx context.Context, userID string, assetType domain.AssetType) (*domain.Generation, error) {
	items := s.filter(func(g domain.Generation) bool {
		return g.UserID == userID && g.AssetType == assetType && g.Status == domain.StatusPending
	})
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return &items[0], nil
}

func (s *Store) ListCompletedVideos(ctx context.Context, userID string, limit int) ([]domain.Generation, error) {
	items := s.filter(func(g domain.Generation) bool {
		return g.UserID == userID && g.Status == domain.StatusCompleted && g.FinalVideoURL != ""
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Save(ctx context.Context, g *domain.Generation, expectedUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.generations[g.ID]
	if !ok || !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return domain.ErrConflict
	}
	next := *g
	// Ownership, type, params and refund state are not writable here.
	next.UserID = stored.UserID
	next.AssetType = stored.AssetType
	next.Params = stored.Params
	next.CreditsRefunded = stored.CreditsRefunded
	next.Attempt = stored.Attempt
	next.RefundedAttempt = stored.RefundedAttempt
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = s.stamp(stored.UpdatedAt)
	s.generations[g.ID] = next
	g.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *Store) Complete(ctx context.Context, id string, out domain.StageOutput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok || g.Status.Terminal() {
		return false, nil
	}
	g.Complete(out)
	g.UpdatedAt = s.stamp(g.UpdatedAt)
	s.generations[id] = g
	return true, nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, f domain.Failure, from ...domain.GenerationStatus) (bool, error) {
	if len(from) == 0 {
		from = []domain.GenerationStatus{domain.StatusPending, domain.StatusProcessing}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok || !containsStatus(from, g.Status) {
		return false, nil
	}
	g.Status = domain.StatusFailed
	g.ErrorType = f.Type
	g.ErrorMessage = f.Message
	g.IsRefundable = f.Type.Refundable()
	g.CanRetry = true
	switch f.Stage {
	case 1:
		g.Stage1Error = f.Message
	case 2:
		g.Stage2Error = f.Message
	case 3:
		g.Stage3Error = f.Message
	}
	g.UpdatedAt = s.stamp(g.UpdatedAt)
	s.generations[id] = g
	return true, nil
}

func (s *Store) Refund(ctx context.Context, id string, amount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok || !g.RefundDue() {
		return false, nil
	}
	g.MarkRefunded()
	g.UpdatedAt = s.stamp(g.UpdatedAt)
	s.generations[id] = g
	s.users[g.UserID] += amount
	s.record(g.UserID, domain.CreditTxRefund, amount, g.ID, "refund "+string(g.AssetType))
	return true, nil
}

func (s *Store) RetryWithDebit(ctx context.Context, id, userID string, cost, refund int) (*domain.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok || g.UserID != userID || g.Status != domain.StatusFailed || !g.CanRetry {
		return nil, domain.ErrNotRetryable
	}
	if !g.RefundDue() {
		refund = 0
	}
	if s.users[userID]+refund < cost {
		return nil, domain.ErrInsufficientCredits
	}
	if refund > 0 {
		s.users[userID] += refund
		g.MarkRefunded()
		s.record(userID, domain.CreditTxRefund, refund, g.ID, "refund "+string(g.AssetType))
	}
	s.users[userID] -= cost
	g.ResetForRetry()
	g.UpdatedAt = s.stamp(g.UpdatedAt)
	s.generations[id] = g
	s.record(userID, domain.CreditTxUsage, -cost, g.ID, "retry "+string(g.AssetType))
	return &g, nil
}

func (s *Store) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Generation, error) {
	items := s.filter(func(g domain.Generation) bool {
		return g.Status == domain.StatusPending && g.UpdatedAt.Before(olderThan)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ListRefundable(ctx context.Context, limit int) ([]domain.Generation, error) {
	items := s.filter(func(g domain.Generation) bool {
		return g.RefundDue()
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return balance, nil
}

func (s *Store) Grant(ctx context.Context, userID string, amount int, txType domain.CreditTxType, description string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if balance+amount < 0 {
		return 0, domain.ErrInsufficientCredits
	}
	s.users[userID] = balance + amount
	s.record(userID, txType, amount, "", description)
	return balance + amount, nil
}

func (s *Store) History(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CreditTransaction
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].UserID != userID {
			continue
		}
		out = append(out, s.ledger[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// record appends a ledger entry. Callers hold s.mu.
func (s *Store) record(userID string, txType domain.CreditTxType, amount int, generationID, description string) {
	s.ledger = append(s.ledger, domain.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: s.users[userID],
		GenerationID: generationID,
		Description:  description,
		CreatedAt:    s.now(),
	})
}

// stamp returns a timestamp strictly after prev. Callers hold s.mu.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// filter returns matching generations, newest first.
func (s *Store) filter(match func(domain.Generation) bool) []domain.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Generation
	for _, g := range s.generations {
		if match(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func containsStatus(list []domain.GenerationStatus, s domain.GenerationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var (
	_ domain.GenerationRepository = (*Store)(nil)
	_ domain.LedgerRepository     = (*Store)(nil)
)
