package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tidebank/ledger-core/pkg"
)

// UserRepository is the read-only identity lookup. Tier and KYC status are
// owned and mutated by the external identity service.
type UserRepository interface {
	Exists(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error)
	// FindVerification returns the user's verification tier and KYC status.
	FindVerification(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (pkg.Tier, pkg.KYCStatus, error)
}

type UserRepositoryImpl struct {
}

func NewUserRepository() UserRepository {
	return &UserRepositoryImpl{}
}

func (u UserRepositoryImpl) Exists(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, errors.New("user ID cannot be nil")
	}
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

func (u UserRepositoryImpl) FindVerification(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (pkg.Tier, pkg.KYCStatus, error) {
	var tier pkg.Tier
	var kycStatus pkg.KYCStatus
	err := tx.QueryRow(ctx, `SELECT tier, kyc_status FROM users WHERE id = $1`, userID).Scan(&tier, &kycStatus)
	return tier, kycStatus, err
}
