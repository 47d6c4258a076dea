package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/pkg"
)

// Account maps to table `accounts`. Balance is mutated only by the transfer
// engine, inside a database transaction paired with a ledger row.
type Account struct {
	ID            uuid.UUID
	AccountNumber string // external 10-digit number, distinct from ID
	UserID        uuid.UUID
	Type          pkg.AccountType
	Balance       decimal.Decimal
	Status        pkg.AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
