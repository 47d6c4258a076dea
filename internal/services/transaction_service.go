package services

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/internal/observability"
	"github.com/tidebank/ledger-core/pkg"
	"github.com/tidebank/ledger-core/pkg/models"
	"github.com/tidebank/ledger-core/pkg/policy"
	"github.com/tidebank/ledger-core/pkg/repositories"
	"github.com/tidebank/ledger-core/pkg/utils"
	"go.uber.org/zap"
)

// TxRunner is the transaction boundary the engine runs inside. *database.DB
// satisfies it; tests inject an in-memory fake.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// TransactionService is the transfer engine: every operation is a single
// atomic unit that either commits balances plus one ledger row together or
// leaves no visible effect at all.
type TransactionService interface {
	Deposit(ctx context.Context, traceID string, toAccountID uuid.UUID, amount decimal.Decimal, description string, performedBy uuid.UUID) (models.Transaction, error)
	Withdraw(ctx context.Context, traceID string, fromAccountID uuid.UUID, amount decimal.Decimal, description string, performedBy uuid.UUID) (models.Transaction, error)
	Transfer(ctx context.Context, traceID string, fromAccountID, toAccountID uuid.UUID, amount decimal.Decimal, description string, performedBy uuid.UUID) (models.Transaction, error)
	History(ctx context.Context, traceID string, accountID uuid.UUID, page int, size int) ([]models.Transaction, int64, error)
}

const (
	// Storage conflicts (serialization failure, deadlock victim) are the only
	// errors retried from the top; everything else propagates immediately.
	maxConflictRetries = 3
	conflictRetryBase  = 10 * time.Millisecond
	conflictRetryMax   = 100 * time.Millisecond
)

const (
	historyMaxPageSize = 100
)

type TransactionServiceImpl struct {
	logger      *zap.Logger
	db          TxRunner
	reader      repositories.Querier
	accountRepo repositories.AccountRepository
	txnRepo     repositories.TransactionRepository
	userRepo    repositories.UserRepository
	publisher   AuditPublisher // optional; nil disables audit events
}

func NewTransactionService(logger *zap.Logger, db TxRunner, reader repositories.Querier, accountRepo repositories.AccountRepository, txnRepo repositories.TransactionRepository, userRepo repositories.UserRepository, publisher AuditPublisher) TransactionService {
	return &TransactionServiceImpl{
		logger:      logger,
		db:          db,
		reader:      reader,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

func (s *TransactionServiceImpl) Deposit(ctx context.Context, traceID string, toAccountID uuid.UUID, amount decimal.Decimal, description string, performedBy uuid.UUID) (models.Transaction, error) {
	start := time.Now()
	if err := validateAmount(amount); err != nil {
		s.recordFailure(pkg.TransactionTypeDeposit, err)
		return models.Transaction{}, err
	}

	var txn models.Transaction
	err := s.runWithConflictRetry(ctx, traceID, func(ctx context.Context, tx pgx.Tx) error {
		account, err := s.accountRepo.FindByIdForUpdate(ctx, tx, toAccountID)
		if err != nil {
			return s.accountLookupError(traceID, err)
		}

		// Deposits are not limited by the tier policy; only decreasing funds are.
		if err = s.accountRepo.AdjustBalance(ctx, tx, account.ID, amount); err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}

		txn = newTransaction(pkg.TransactionTypeDeposit, amount, description, uuid.NullUUID{}, nullUUID(account.ID), performedBy)
		if _, err = s.txnRepo.Create(ctx, tx, txn); err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}
		return nil
	})
	if err != nil {
		s.recordFailure(pkg.TransactionTypeDeposit, err)
		return models.Transaction{}, err
	}

	s.afterCommit(traceID, txn, start)
	return txn, nil
}

func (s *TransactionServiceImpl) Withdraw(ctx context.Context, traceID string, fromAccountID uuid.UUID, amount decimal.Decimal, description string, performedBy uuid.UUID) (models.Transaction, error) {
	start := time.Now()
	if err := validateAmount(amount); err != nil {
		s.recordFailure(pkg.TransactionTypeWithdrawal, err)
		return models.Transaction{}, err
	}

	var txn models.Transaction
	err := s.runWithConflictRetry(ctx, traceID, func(ctx context.Context, tx pgx.Tx) error {
		account, err := s.accountRepo.FindByIdForUpdate(ctx, tx, fromAccountID)
		if err != nil {
			return s.accountLookupError(traceID, err)
		}

		if err = s.checkSourceAllowed(ctx, tx, traceID, account, amount); err != nil {
			return err
		}

		if err = s.accountRepo.AdjustBalance(ctx, tx, account.ID, amount.Neg()); err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}

		txn = newTransaction(pkg.TransactionTypeWithdrawal, amount, description, nullUUID(account.ID), uuid.NullUUID{}, performedBy)
		if _, err = s.txnRepo.Create(ctx, tx, txn); err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}
		return nil
	})
	if err != nil {
		s.recordFailure(pkg.TransactionTypeWithdrawal, err)
		return models.Transaction{}, err
	}

	s.afterCommit(traceID, txn, start)
	return txn, nil
}

func (s *TransactionServiceImpl) Transfer(ctx context.Context, traceID string, fromAccountID, toAccountID uuid.UUID, amount decimal.Decimal, description string, performedBy uuid.UUID) (models.Transaction, error) {
	start := time.Now()
	if err := validateAmount(amount); err != nil {
		s.recordFailure(pkg.TransactionTypeTransfer, err)
		return models.Transaction{}, err
	}
	if fromAccountID == toAccountID {
		err := pkg.NewAppError(pkg.ErrInvalidInputCode, "source and destination accounts must differ", nil)
		s.recordFailure(pkg.TransactionTypeTransfer, err)
		return models.Transaction{}, err
	}

	var txn models.Transaction
	err := s.runWithConflictRetry(ctx, traceID, func(ctx context.Context, tx pgx.Tx) error {
		// Lock both rows in ascending id order regardless of role, so two
		// transfers with swapped source/destination cannot deadlock.
		firstID, secondID := fromAccountID, toAccountID
		if bytes.Compare(secondID[:], firstID[:]) < 0 {
			firstID, secondID = secondID, firstID
		}

		first, err := s.accountRepo.FindByIdForUpdate(ctx, tx, firstID)
		if err != nil {
			return s.accountLookupError(traceID, err)
		}
		second, err := s.accountRepo.FindByIdForUpdate(ctx, tx, secondID)
		if err != nil {
			return s.accountLookupError(traceID, err)
		}

		source := first
		if second.ID == fromAccountID {
			source = second
		}

		if err = s.checkSourceAllowed(ctx, tx, traceID, source, amount); err != nil {
			return err
		}

		if err = s.accountRepo.AdjustBalance(ctx, tx, fromAccountID, amount.Neg()); err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}
		if err = s.accountRepo.AdjustBalance(ctx, tx, toAccountID, amount); err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}

		txn = newTransaction(pkg.TransactionTypeTransfer, amount, description, nullUUID(fromAccountID), nullUUID(toAccountID), performedBy)
		if _, err = s.txnRepo.Create(ctx, tx, txn); err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}
		return nil
	})
	if err != nil {
		s.recordFailure(pkg.TransactionTypeTransfer, err)
		return models.Transaction{}, err
	}

	s.afterCommit(traceID, txn, start)
	return txn, nil
}

func (s *TransactionServiceImpl) History(ctx context.Context, traceID string, accountID uuid.UUID, page int, size int) ([]models.Transaction, int64, error) {
	if page < 1 {
		return nil, 0, pkg.NewAppError(pkg.ErrInvalidInputCode, "page must be a positive integer", nil)
	}
	if size < 1 || size > historyMaxPageSize {
		return nil, 0, pkg.NewAppError(pkg.ErrInvalidInputCode, "page size out of range", nil)
	}

	// Plain read, routed to a replica when one is configured.
	txns, total, err := s.txnRepo.FindByAccount(ctx, s.reader, accountID, page, size)
	if err != nil {
		return nil, 0, pkg.HandleSQLError(traceID, s.logger, err)
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return txns, total, nil
}

// checkSourceAllowed enforces the tier limit and balance sufficiency against
// a row the caller has already locked, closing the check-then-mutate race.
func (s *TransactionServiceImpl) checkSourceAllowed(ctx context.Context, tx pgx.Tx, traceID string, source models.Account, amount decimal.Decimal) error {
	tier, kycStatus, err := s.userRepo.FindVerification(ctx, tx, source.UserID)
	if err != nil {
		return pkg.HandleSQLError(traceID, s.logger, err)
	}

	limit := policy.LimitFor(tier, kycStatus)
	if amount.GreaterThan(limit) {
		return pkg.NewAppError(pkg.ErrLimitExceededCode,
			"transaction limit exceeded for "+string(tier)+" ("+string(kycStatus)+"). Limit: "+limit.String(), nil)
	}

	if source.Balance.LessThan(amount) {
		return pkg.NewAppError(pkg.ErrInsufficientFundsCode, "insufficient funds", nil)
	}
	return nil
}

func (s *TransactionServiceImpl) runWithConflictRetry(ctx context.Context, traceID string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.db.WithTransaction(ctx, fn)
		if !pkg.IsRetryable(err) || attempt == maxConflictRetries {
			return err
		}
		observability.ConflictRetries.Inc()
		s.logger.Warn("storage conflict, retrying operation",
			zap.String(pkg.TraceId, traceID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(utils.CalculateExponentialBackoffWithJitter(attempt, conflictRetryBase, conflictRetryMax))
	}
}

func (s *TransactionServiceImpl) accountLookupError(traceID string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("account not found", zap.String(pkg.TraceId, traceID))
		return pkg.NewAppError(pkg.ErrRecordNotFoundCode, "account not found", err)
	}
	return pkg.HandleSQLError(traceID, s.logger, err)
}

func (s *TransactionServiceImpl) afterCommit(traceID string, txn models.Transaction, start time.Time) {
	observability.TransactionsCommitted.WithLabelValues(string(txn.Type)).Inc()
	observability.TransactionLatency.WithLabelValues(string(txn.Type)).Observe(time.Since(start).Seconds())

	if s.publisher == nil {
		return
	}
	// Fire-and-forget: the ledger row is already durable.
	if err := s.publisher.PublishTransaction(traceID, txn); err != nil {
		s.logger.Error("failed to publish audit event",
			zap.String(pkg.TraceId, traceID),
			zap.String("transaction_id", txn.ID.String()),
			zap.Error(err))
	}
}

func (s *TransactionServiceImpl) recordFailure(txnType pkg.TransactionType, err error) {
	reason := pkg.ErrServerCode.Code
	var appErr pkg.AppError
	if errors.As(err, &appErr) {
		reason = appErr.Code.Code
	}
	observability.TransactionsFailed.WithLabelValues(string(txnType), reason).Inc()
}

// validateAmount rejects non-positive amounts and amounts with more than two
// fractional digits; ledger arithmetic is exact fixed-point.
func validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return pkg.NewAppError(pkg.ErrInvalidAmountCode, "amount must be positive", nil)
	}
	if !amount.Equal(amount.Round(2)) {
		return pkg.NewAppError(pkg.ErrInvalidAmountCode, "amount must have at most 2 decimal places", nil)
	}
	return nil
}

func newTransaction(txnType pkg.TransactionType, amount decimal.Decimal, description string, from, to uuid.NullUUID, performedBy uuid.UUID) models.Transaction {
	return models.Transaction{
		ID:              uuid.New(),
		Amount:          amount,
		Type:            txnType,
		Status:          pkg.TransactionStatusCompleted,
		Description:     description,
		FromAccountID:   from,
		ToAccountID:     to,
		PerformedByUser: performedBy,
		CreatedAt:       time.Now().UTC(),
	}
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}
