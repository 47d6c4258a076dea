package views

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/pkg"
	"github.com/tidebank/ledger-core/pkg/models"
)

type CreateAccountRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
	Type   string `json:"type" binding:"required,oneof=checking savings business"`
}

type AccountView struct {
	ID            string            `json:"id"`
	AccountNumber string            `json:"accountNumber"`
	UserID        string            `json:"userId"`
	Type          pkg.AccountType   `json:"type"`
	Balance       decimal.Decimal   `json:"balance"`
	Status        pkg.AccountStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
}

type BalanceView struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
}

func NewAccountView(account models.Account) AccountView {
	return AccountView{
		ID:            account.ID.String(),
		AccountNumber: account.AccountNumber,
		UserID:        account.UserID.String(),
		Type:          account.Type,
		Balance:       account.Balance,
		Status:        account.Status,
		CreatedAt:     account.CreatedAt,
	}
}
