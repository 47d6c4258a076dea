package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidebank/ledger-core/internal/observability"
	"github.com/tidebank/ledger-core/pkg"
	"go.uber.org/zap"
)

type engineFixture struct {
	store       *fakeStore
	reader      *readerStub
	accountRepo *fakeAccountRepo
	txnRepo     *fakeTxnRepo
	userRepo    *fakeUserRepo
	publisher   *recordingPublisher
	service     TransactionService
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	store := newFakeStore()
	reader := &readerStub{}
	accountRepo := &fakeAccountRepo{store: store}
	txnRepo := &fakeTxnRepo{store: store}
	userRepo := &fakeUserRepo{store: store}
	publisher := &recordingPublisher{}
	service := NewTransactionService(zap.NewNop(), store, reader, accountRepo, txnRepo, userRepo, publisher)
	return &engineFixture{
		store:       store,
		reader:      reader,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		service:     service,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeposit_IncreasesBalanceAndWritesLedgerEntry(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "100.00")

	txn, err := f.service.Deposit(context.Background(), "t-1", account.ID, dec("42.50"), "paycheck", user.ID)

	require.NoError(t, err)
	assert.True(t, f.store.balance(account.ID).Equal(dec("142.50")))
	assert.Equal(t, pkg.TransactionTypeDeposit, txn.Type)
	assert.Equal(t, pkg.TransactionStatusCompleted, txn.Status)
	assert.False(t, txn.FromAccountID.Valid)
	require.True(t, txn.ToAccountID.Valid)
	assert.Equal(t, account.ID, txn.ToAccountID.UUID)

	require.Len(t, f.store.txns, 1)
	assert.True(t, f.store.txns[0].Amount.Equal(dec("42.50")))
	require.Len(t, f.publisher.published, 1)
}

func TestDeposit_AccountNotFound(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.service.Deposit(context.Background(), "t-1", uuid.New(), dec("10.00"), "", uuid.New())

	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrRecordNotFoundCode))
	assert.Empty(t, f.store.txns)
}

func TestDeposit_RejectsInvalidAmounts(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "100.00")

	for _, amount := range []string{"0", "-5.00", "1.005"} {
		_, err := f.service.Deposit(context.Background(), "t-1", account.ID, dec(amount), "", user.ID)
		assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrInvalidAmountCode), "amount %s", amount)
	}
	assert.True(t, f.store.balance(account.ID).Equal(dec("100.00")))
	assert.Empty(t, f.store.txns)
}

func TestWithdraw_InsufficientFundsLeavesBalanceUntouched(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified) // limit 50000
	account := f.store.addAccount(user.ID, "100.00")

	_, err := f.service.Withdraw(context.Background(), "t-1", account.ID, dec("150.00"), "", user.ID)

	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrInsufficientFundsCode))
	assert.True(t, f.store.balance(account.ID).Equal(dec("100.00")))
	assert.Empty(t, f.store.txns)
}

func TestWithdraw_LimitExceededBeforeFundsCheck(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier3, pkg.KYCUnverified) // unverified caps at 1000 regardless of tier
	account := f.store.addAccount(user.ID, "100.00")

	_, err := f.service.Withdraw(context.Background(), "t-1", account.ID, dec("1500.00"), "", user.ID)

	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrLimitExceededCode))
	assert.True(t, f.store.balance(account.ID).Equal(dec("100.00")))
}

func TestWithdraw_Success(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier2, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "100.00")

	txn, err := f.service.Withdraw(context.Background(), "t-1", account.ID, dec("40.00"), "atm", user.ID)

	require.NoError(t, err)
	assert.True(t, f.store.balance(account.ID).Equal(dec("60.00")))
	assert.Equal(t, pkg.TransactionTypeWithdrawal, txn.Type)
	require.True(t, txn.FromAccountID.Valid)
	assert.Equal(t, account.ID, txn.FromAccountID.UUID)
	assert.False(t, txn.ToAccountID.Valid)
}

func TestTransfer_MovesFundsAndWritesSingleEntry(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	other := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	a := f.store.addAccount(user.ID, "100.00")
	b := f.store.addAccount(other.ID, "50.00")

	txn, err := f.service.Transfer(context.Background(), "t-1", a.ID, b.ID, dec("30.00"), "rent", user.ID)

	require.NoError(t, err)
	assert.True(t, f.store.balance(a.ID).Equal(dec("70.00")))
	assert.True(t, f.store.balance(b.ID).Equal(dec("80.00")))
	require.Len(t, f.store.txns, 1)
	assert.Equal(t, pkg.TransactionTypeTransfer, txn.Type)
	assert.True(t, txn.Amount.Equal(dec("30.00")))
	require.True(t, txn.FromAccountID.Valid)
	require.True(t, txn.ToAccountID.Valid)
	assert.Equal(t, a.ID, txn.FromAccountID.UUID)
	assert.Equal(t, b.ID, txn.ToAccountID.UUID)
}

func TestTransfer_SourceLimitApplies(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCUnverified)
	other := f.store.addUser(pkg.Tier3, pkg.KYCVerified)
	a := f.store.addAccount(user.ID, "5000.00")
	b := f.store.addAccount(other.ID, "0.00")

	_, err := f.service.Transfer(context.Background(), "t-1", a.ID, b.ID, dec("2000.00"), "", user.ID)

	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrLimitExceededCode))
	assert.True(t, f.store.balance(a.ID).Equal(dec("5000.00")))
	assert.True(t, f.store.balance(b.ID).Equal(dec("0.00")))
}

func TestTransfer_SameAccountRejected(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	a := f.store.addAccount(user.ID, "100.00")

	_, err := f.service.Transfer(context.Background(), "t-1", a.ID, a.ID, dec("10.00"), "", user.ID)

	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrInvalidInputCode))
}

func TestTransfer_MissingDestination(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	a := f.store.addAccount(user.ID, "100.00")

	_, err := f.service.Transfer(context.Background(), "t-1", a.ID, uuid.New(), dec("10.00"), "", user.ID)

	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrRecordNotFoundCode))
	assert.True(t, f.store.balance(a.ID).Equal(dec("100.00")))
}

func TestDeposit_LedgerFailureRollsBackBalance(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "100.00")
	f.txnRepo.failNext = assert.AnError

	_, err := f.service.Deposit(context.Background(), "t-1", account.ID, dec("42.00"), "", user.ID)

	require.Error(t, err)
	// No orphaned balance change: the atomic unit rolled back as a whole.
	assert.True(t, f.store.balance(account.ID).Equal(dec("100.00")))
	assert.Empty(t, f.store.txns)
}

func TestWithdraw_ConcurrentDoubleSpendPreventionExactlyOneWins(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier3, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "500.00")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Withdraw(context.Background(), "t-1", account.ID, dec("500.00"), "", user.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrInsufficientFundsCode))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, f.store.balance(account.ID).Equal(dec("0.00")))
	assert.Len(t, f.store.txns, 1)
}

func TestLedgerReplayReproducesBalance(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier2, pkg.KYCVerified)
	other := f.store.addUser(pkg.Tier2, pkg.KYCVerified)
	a := f.store.addAccount(user.ID, "0.00")
	b := f.store.addAccount(other.ID, "0.00")

	ctx := context.Background()
	_, err := f.service.Deposit(ctx, "t-1", a.ID, dec("100.00"), "", user.ID)
	require.NoError(t, err)
	_, err = f.service.Withdraw(ctx, "t-1", a.ID, dec("30.00"), "", user.ID)
	require.NoError(t, err)
	_, err = f.service.Transfer(ctx, "t-1", a.ID, b.ID, dec("20.00"), "", user.ID)
	require.NoError(t, err)

	replayed := decimal.Zero
	for _, txn := range f.store.txns {
		replayed = replayed.Add(txn.SignedAmountFor(a.ID))
	}
	assert.True(t, replayed.Equal(f.store.balance(a.ID)))
	assert.True(t, f.store.balance(a.ID).Equal(dec("50.00")))
	assert.True(t, f.store.balance(b.ID).Equal(dec("20.00")))
}

func TestDeposit_RetriesStorageConflicts(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "0.00")

	runner := &conflictRunner{inner: f.store, conflicts: 2}
	service := NewTransactionService(zap.NewNop(), runner, f.reader, f.accountRepo, f.txnRepo, f.userRepo, nil)

	_, err := service.Deposit(context.Background(), "t-1", account.ID, dec("10.00"), "", user.ID)

	require.NoError(t, err)
	assert.Equal(t, 3, runner.calls)
	assert.True(t, f.store.balance(account.ID).Equal(dec("10.00")))
}

func TestDeposit_StorageConflictExhaustsRetries(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "0.00")

	runner := &conflictRunner{inner: f.store, conflicts: 10}
	service := NewTransactionService(zap.NewNop(), runner, f.reader, f.accountRepo, f.txnRepo, f.userRepo, nil)

	retriesBefore := testutil.ToFloat64(observability.ConflictRetries)
	_, err := service.Deposit(context.Background(), "t-1", account.ID, dec("10.00"), "", user.ID)

	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrStorageConflict))
	assert.Equal(t, maxConflictRetries, runner.calls)
	assert.True(t, f.store.balance(account.ID).Equal(dec("0.00")))
	// Backoff happens between attempts only: the final failure returns
	// immediately instead of sleeping once more.
	assert.Equal(t, float64(maxConflictRetries-1), testutil.ToFloat64(observability.ConflictRetries)-retriesBefore)
}

func TestHistory_ReadsBypassWriteTransactions(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "10.00")

	_, _, err := f.service.History(context.Background(), "t-1", account.ID, 1, 20)

	require.NoError(t, err)
	assert.Zero(t, f.store.txCount)
	assert.Same(t, f.reader, f.txnRepo.lastQuerier)
}

func TestHistory_PaginatesNewestFirst(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier3, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "0.00")

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := f.service.Deposit(ctx, "t-1", account.ID, dec("1.00"), "", user.ID)
		require.NoError(t, err)
	}

	for page, want := range map[int]int{1: 10, 2: 10, 3: 5} {
		txns, total, err := f.service.History(ctx, "t-1", account.ID, page, 10)
		require.NoError(t, err)
		assert.Len(t, txns, want, "page %d", page)
		assert.Equal(t, int64(25), total, "page %d", page)
	}
}

func TestHistory_EmptyAccount(t *testing.T) {
	f := newEngineFixture(t)

	txns, total, err := f.service.History(context.Background(), "t-1", uuid.New(), 1, 20)

	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, int64(0), total)
}

func TestHistory_RejectsBadPagination(t *testing.T) {
	f := newEngineFixture(t)

	_, _, err := f.service.History(context.Background(), "t-1", uuid.New(), 0, 20)
	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrInvalidInputCode))

	_, _, err = f.service.History(context.Background(), "t-1", uuid.New(), 1, 0)
	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrInvalidInputCode))

	_, _, err = f.service.History(context.Background(), "t-1", uuid.New(), 1, 500)
	assert.True(t, pkg.IsAppErrorCode(err, pkg.ErrInvalidInputCode))
}

func TestSignedAmountPerspective(t *testing.T) {
	f := newEngineFixture(t)
	user := f.store.addUser(pkg.Tier1, pkg.KYCVerified)
	account := f.store.addAccount(user.ID, "0.00")

	txn, err := f.service.Deposit(context.Background(), "t-1", account.ID, dec("5.00"), "first", user.ID)
	require.NoError(t, err)

	assert.True(t, txn.SignedAmountFor(account.ID).Equal(dec("5.00")))
	assert.True(t, txn.SignedAmountFor(uuid.New()).IsZero())
}
