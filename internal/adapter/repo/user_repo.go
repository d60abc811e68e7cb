package repo

import (
	"context"

	"ugcvideo/internal/domain"
	"ugcvideo/internal/infra"
	"ugcvideo/internal/sqlinline"
)

// LedgerRepositoryPG implements domain.LedgerRepository backed by PostgreSQL.
type LedgerRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewLedgerRepository creates a new LedgerRepositoryPG.
func NewLedgerRepository(sql infra.SQLExecutor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{sql: sql}
}

// Balance returns the user's spendable credits.
func (r *LedgerRepositoryPG) Balance(ctx context.Context, userID string) (int, error) {
	var credits int
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectUserCredits, userID).Scan(&credits); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return credits, nil
}

// Grant adds amount (negative for corrections) and records a ledger entry.
// A correction that would overdraw the balance fails with ErrInsufficientCredits.
func (r *LedgerRepositoryPG) Grant(ctx context.Context, userID string, amount int, txType domain.CreditTxType, description string) (int, error) {
	var credits int
	row := r.sql.QueryRow(ctx, sqlinline.QGrantCredits, userID, amount, string(txType), description)
	if err := row.Scan(&credits); err != nil {
		switch {
		case infra.IsNoRows(err):
			return 0, domain.ErrNotFound
		case infra.IsCheckViolation(err, creditsConstraint):
			return 0, domain.ErrInsufficientCredits
		}
		return 0, err
	}
	return credits, nil
}

// History lists the most recent ledger entries for the user.
func (r *LedgerRepositoryPG) History(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListCreditTransactions, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.CreditTransaction
	for rows.Next() {
		var (
			tx     domain.CreditTransaction
			txType string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &txType, &tx.Amount, &tx.BalanceAfter, &tx.GenerationID, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Type = domain.CreditTxType(txType)
		items = append(items, tx)
	}
	return items, rows.Err()
}

// EnsureUser returns the id and balance of the user with email, creating it if needed.
func (r *LedgerRepositoryPG) EnsureUser(ctx context.Context, email string) (string, int, error) {
	var (
		id      string
		credits int
	)
	if err := r.sql.QueryRow(ctx, sqlinline.QUpsertUserByEmail, email).Scan(&id, &credits); err != nil {
		return "", 0, err
	}
	return id, credits, nil
}
