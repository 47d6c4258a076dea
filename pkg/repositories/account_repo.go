package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/pkg/models"
)

// AccountRepository defines the interface for account repository. All methods
// run inside the caller's transaction; the service layer owns the boundary.
type AccountRepository interface {
	// Create creates a new account.
	Create(ctx context.Context, tx pgx.Tx, account models.Account) (pgconn.CommandTag, error)
	// FindById finds an account by ID. Plain read; takes no lock and may be
	// served by a replica.
	FindById(ctx context.Context, q Querier, accountID uuid.UUID) (models.Account, error)
	// FindByIdForUpdate finds an account by ID and takes a row lock on it.
	FindByIdForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (models.Account, error)
	// FindByUser returns the user's oldest account. Multi-account users get
	// the first one; the lookup path does not disambiguate further.
	FindByUser(ctx context.Context, q Querier, userID uuid.UUID) (models.Account, error)
	// AdjustBalance applies balance += delta; delta may be negative. Callers
	// must have validated sufficiency on a locked row first.
	AdjustBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, delta decimal.Decimal) error
	// ExistsByNumber reports whether an external account number is taken.
	ExistsByNumber(ctx context.Context, tx pgx.Tx, accountNumber string) (bool, error)
}

type AccountRepositoryImpl struct {
}

func NewAccountRepository() AccountRepository {
	return &AccountRepositoryImpl{}
}

const accountColumns = `id, account_number, user_id, type, balance, status, created_at, updated_at`

func (a AccountRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, account models.Account) (pgconn.CommandTag, error) {
	return tx.Exec(ctx, `INSERT INTO accounts (id, account_number, user_id, type, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.AccountNumber, account.UserID, account.Type, account.Balance, account.Status, account.CreatedAt, account.UpdatedAt)
}

func (a AccountRepositoryImpl) FindById(ctx context.Context, q Querier, accountID uuid.UUID) (models.Account, error) {
	if accountID == uuid.Nil {
		return models.Account{}, fmt.Errorf("invalid account ID: %s", accountID.String())
	}
	return a.findOne(ctx, q, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
}

func (a AccountRepositoryImpl) FindByIdForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (models.Account, error) {
	if accountID == uuid.Nil {
		return models.Account{}, fmt.Errorf("invalid account ID: %s", accountID.String())
	}
	return a.findOne(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
}

func (a AccountRepositoryImpl) FindByUser(ctx context.Context, q Querier, userID uuid.UUID) (models.Account, error) {
	return a.findOne(ctx, q, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at LIMIT 1`, userID)
}

func (a AccountRepositoryImpl) AdjustBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, delta decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1, updated_at = now() WHERE id = $2`, delta, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (a AccountRepositoryImpl) ExistsByNumber(ctx context.Context, tx pgx.Tx, accountNumber string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE account_number = $1)`, accountNumber).Scan(&exists)
	return exists, err
}

func (a AccountRepositoryImpl) findOne(ctx context.Context, q Querier, sql string, arg any) (models.Account, error) {
	var account models.Account
	err := q.QueryRow(ctx, sql, arg).Scan(
		&account.ID, &account.AccountNumber, &account.UserID, &account.Type, &account.Balance, &account.Status, &account.CreatedAt, &account.UpdatedAt)
	return account, err
}
