package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/pkg"
)

// Transaction maps to table `transactions`: one immutable ledger entry per
// completed movement. Rows are never updated or deleted; they are the audit
// trail of the platform.
type Transaction struct {
	ID          uuid.UUID
	Amount      decimal.Decimal // strictly positive
	Type        pkg.TransactionType
	Status      pkg.TransactionStatus
	Description string
	// FromAccountID is set for withdrawals and transfers.
	FromAccountID uuid.NullUUID
	// ToAccountID is set for deposits and transfers.
	ToAccountID     uuid.NullUUID
	PerformedByUser uuid.UUID
	CreatedAt       time.Time
}

// SignedAmountFor returns the amount as seen from accountID's perspective:
// negative when the account is the source, positive when it is the
// destination. Summing signed amounts replays an account balance from zero.
func (t Transaction) SignedAmountFor(accountID uuid.UUID) decimal.Decimal {
	if t.FromAccountID.Valid && t.FromAccountID.UUID == accountID {
		return t.Amount.Neg()
	}
	if t.ToAccountID.Valid && t.ToAccountID.UUID == accountID {
		return t.Amount
	}
	return decimal.Zero
}
