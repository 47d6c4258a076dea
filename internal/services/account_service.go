package services

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/pkg"
	"github.com/tidebank/ledger-core/pkg/models"
	"github.com/tidebank/ledger-core/pkg/repositories"
	"go.uber.org/zap"
)

type AccountService interface {
	// Create opens an account for the user: balance 0, status active, and a
	// fresh external 10-digit account number.
	Create(ctx context.Context, traceID string, userID uuid.UUID, accountType pkg.AccountType) (models.Account, error)
	GetById(ctx context.Context, traceID string, accountID uuid.UUID) (models.Account, error)
	// GetByUser returns the user's first account when several exist.
	GetByUser(ctx context.Context, traceID string, userID uuid.UUID) (models.Account, error)
	GetBalance(ctx context.Context, traceID string, accountID uuid.UUID) (decimal.Decimal, error)
}

// accountNumberAttempts bounds the unique-number generation loop; running out
// is reported as a typed failure, never retried forever.
const accountNumberAttempts = 10

type AccountServiceImpl struct {
	logger      *zap.Logger
	db          TxRunner
	reader      repositories.Querier
	accountRepo repositories.AccountRepository
	userRepo    repositories.UserRepository
}

func NewAccountService(logger *zap.Logger, db TxRunner, reader repositories.Querier, accountRepo repositories.AccountRepository, userRepo repositories.UserRepository) AccountService {
	return &AccountServiceImpl{
		logger:      logger,
		db:          db,
		reader:      reader,
		accountRepo: accountRepo,
		userRepo:    userRepo,
	}
}

func (s *AccountServiceImpl) Create(ctx context.Context, traceID string, userID uuid.UUID, accountType pkg.AccountType) (models.Account, error) {
	var account models.Account
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		exists, err := s.userRepo.Exists(ctx, tx, userID)
		if err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}
		if !exists {
			return pkg.NewAppError(pkg.ErrRecordNotFoundCode, "user not found", nil)
		}

		number, err := s.generateAccountNumber(ctx, tx, traceID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		account = models.Account{
			ID:            uuid.New(),
			AccountNumber: number,
			UserID:        userID,
			Type:          accountType,
			Balance:       decimal.Zero,
			Status:        pkg.AccountStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err = s.accountRepo.Create(ctx, tx, account); err != nil {
			return pkg.HandleSQLError(traceID, s.logger, err)
		}
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}

	s.logger.Info("account created",
		zap.String(pkg.TraceId, traceID),
		zap.String("account_id", account.ID.String()),
		zap.String("user_id", userID.String()))
	return account, nil
}

func (s *AccountServiceImpl) GetById(ctx context.Context, traceID string, accountID uuid.UUID) (models.Account, error) {
	// Plain read, routed to a replica when one is configured.
	account, err := s.accountRepo.FindById(ctx, s.reader, accountID)
	if err != nil {
		return models.Account{}, s.lookupError(traceID, err, "account not found")
	}
	return account, nil
}

func (s *AccountServiceImpl) GetByUser(ctx context.Context, traceID string, userID uuid.UUID) (models.Account, error) {
	account, err := s.accountRepo.FindByUser(ctx, s.reader, userID)
	if err != nil {
		return models.Account{}, s.lookupError(traceID, err, "no account for user")
	}
	return account, nil
}

func (s *AccountServiceImpl) GetBalance(ctx context.Context, traceID string, accountID uuid.UUID) (decimal.Decimal, error) {
	account, err := s.GetById(ctx, traceID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// generateAccountNumber draws random 10-digit numbers until one is unused,
// giving up after accountNumberAttempts tries.
func (s *AccountServiceImpl) generateAccountNumber(ctx context.Context, tx pgx.Tx, traceID string) (string, error) {
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		number := strconv.FormatInt(1000000000+rand.Int63n(9000000000), 10)
		exists, err := s.accountRepo.ExistsByNumber(ctx, tx, number)
		if err != nil {
			return "", pkg.HandleSQLError(traceID, s.logger, err)
		}
		if !exists {
			return number, nil
		}
	}
	s.logger.Error("account number space exhausted", zap.String(pkg.TraceId, traceID))
	return "", pkg.NewAppError(pkg.ErrGenerationExhaustedCode, "failed to generate unique account number", nil)
}

func (s *AccountServiceImpl) lookupError(traceID string, err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn(msg, zap.String(pkg.TraceId, traceID))
		return pkg.NewAppError(pkg.ErrRecordNotFoundCode, msg, err)
	}
	return pkg.HandleSQLError(traceID, s.logger, err)
}
