package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tidebank/ledger-core/pkg/models"
)

// TransactionRepository is the append-only ledger. There is deliberately no
// update or delete path: a persisted row is the immutable audit trail.
type TransactionRepository interface {
	// Create appends a ledger entry within the caller's transaction.
	Create(ctx context.Context, tx pgx.Tx, txn models.Transaction) (pgconn.CommandTag, error)
	// FindByAccount returns entries where the account is source or
	// destination, newest first, with offset pagination and the total count.
	// Plain read; may be served by a replica.
	FindByAccount(ctx context.Context, q Querier, accountID uuid.UUID, page int, size int) ([]models.Transaction, int64, error)
}

type TransactionRepositoryImpl struct {
}

func NewTransactionRepository() TransactionRepository {
	return &TransactionRepositoryImpl{}
}

func (t TransactionRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, txn models.Transaction) (pgconn.CommandTag, error) {
	return tx.Exec(ctx, `
						INSERT INTO transactions (id, amount, type, status, description, from_account_id, to_account_id, performed_by_user_id, created_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		txn.ID,
		txn.Amount,
		txn.Type,
		txn.Status,
		txn.Description,
		txn.FromAccountID,
		txn.ToAccountID,
		txn.PerformedByUser,
		txn.CreatedAt,
	)
}

func (t TransactionRepositoryImpl) FindByAccount(ctx context.Context, q Querier, accountID uuid.UUID, page int, size int) ([]models.Transaction, int64, error) {
	if accountID == uuid.Nil {
		return nil, 0, errors.New("account ID cannot be nil")
	}

	var total int64
	err := q.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE from_account_id = $1 OR to_account_id = $1`, accountID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	// calculate offset.
	offset := (page - 1) * size
	rows, err := q.Query(ctx, `
		SELECT id, amount, type, status, description, from_account_id, to_account_id, performed_by_user_id, created_at
		FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, accountID, size, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		var description *string
		if err = rows.Scan(
			&txn.ID,
			&txn.Amount,
			&txn.Type,
			&txn.Status,
			&description,
			&txn.FromAccountID,
			&txn.ToAccountID,
			&txn.PerformedByUser,
			&txn.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		if description != nil {
			txn.Description = *description
		}
		txns = append(txns, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
