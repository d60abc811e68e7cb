package domain

import "time"

// User is the owner of generations and the holder of a credit balance.
type User struct {
	ID           string
	Email        string
	VideoCredits int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreditTxType classifies ledger movements.
type CreditTxType string

const (
	CreditTxUsage      CreditTxType = "usage"
	CreditTxRefund     CreditTxType = "refund"
	CreditTxTopUp      CreditTxType = "topup"
	CreditTxAdjustment CreditTxType = "adjustment"
)

// CreditTransaction is one audit entry of the credit ledger. Amount is
// positive for credits and negative for debits.
type CreditTransaction struct {
	ID           string
	UserID       string
	Type         CreditTxType
	Amount       int
	BalanceAfter int
	GenerationID string
	Description  string
	CreatedAt    time.Time
}
