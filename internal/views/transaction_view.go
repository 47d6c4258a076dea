package views

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/pkg"
	"github.com/tidebank/ledger-core/pkg/models"
)

type DepositRequest struct {
	ToAccountID string          `json:"toAccountId" binding:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type WithdrawRequest struct {
	FromAccountID string          `json:"fromAccountId" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

type TransferRequest struct {
	FromAccountID string          `json:"fromAccountId" binding:"required,uuid"`
	ToAccountID   string          `json:"toAccountId" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

type TransactionView struct {
	ID            string                `json:"id"`
	Amount        decimal.Decimal       `json:"amount"`
	Type          pkg.TransactionType   `json:"type"`
	Status        pkg.TransactionStatus `json:"status"`
	Description   string                `json:"description,omitempty"`
	FromAccountID *string               `json:"fromAccountId,omitempty"`
	ToAccountID   *string               `json:"toAccountId,omitempty"`
	PerformedBy   string                `json:"performedBy"`
	CreatedAt     time.Time             `json:"createdAt"`
}

type HistoryResponse struct {
	Transactions []TransactionView `json:"transactions"`
	Page         int               `json:"page"`
	PageSize     int               `json:"pageSize"`
	TotalCount   int64             `json:"totalCount"`
}

func NewTransactionView(txn models.Transaction) TransactionView {
	v := TransactionView{
		ID:          txn.ID.String(),
		Amount:      txn.Amount,
		Type:        txn.Type,
		Status:      txn.Status,
		Description: txn.Description,
		PerformedBy: txn.PerformedByUser.String(),
		CreatedAt:   txn.CreatedAt,
	}
	if txn.FromAccountID.Valid {
		from := txn.FromAccountID.UUID.String()
		v.FromAccountID = &from
	}
	if txn.ToAccountID.Valid {
		to := txn.ToAccountID.UUID.String()
		v.ToAccountID = &to
	}
	return v
}
