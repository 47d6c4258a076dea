package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tidebank/ledger-core/pkg"
)

// User maps to table `users`. Identity attributes are owned by the external
// identity-management service; the ledger core only reads tier and KYC status.
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Tier      pkg.Tier
	KYCStatus pkg.KYCStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	// Associations
	Accounts []Account
}
