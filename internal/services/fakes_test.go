package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/tidebank/ledger-core/pkg"
	"github.com/tidebank/ledger-core/pkg/models"
	"github.com/tidebank/ledger-core/pkg/repositories"
)

// fakeStore is an in-memory stand-in for postgres. One mutex serializes
// transactions; WithTransaction snapshots state up front and restores it when
// fn fails, which gives the same all-or-nothing visibility the real pool
// provides.
type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	accounts map[uuid.UUID]models.Account
	txns     []models.Transaction
	// txCount counts write transactions opened; plain reads must not add to it.
	txCount int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[uuid.UUID]models.User),
		accounts: make(map[uuid.UUID]models.Account),
	}
}

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCount++

	accountsSnap := make(map[uuid.UUID]models.Account, len(f.accounts))
	for k, v := range f.accounts {
		accountsSnap[k] = v
	}
	txnsSnap := make([]models.Transaction, len(f.txns))
	copy(txnsSnap, f.txns)

	if err := fn(ctx, nil); err != nil {
		f.accounts = accountsSnap
		f.txns = txnsSnap
		return err
	}
	return nil
}

func (f *fakeStore) addUser(tier pkg.Tier, kyc pkg.KYCStatus) models.User {
	user := models.User{ID: uuid.New(), Tier: tier, KYCStatus: kyc}
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) addAccount(userID uuid.UUID, balance string) models.Account {
	account := models.Account{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    pkg.AccountTypeChecking,
		Balance: decimal.RequireFromString(balance),
		Status:  pkg.AccountStatusActive,
		// Distinct creation times so oldest-account lookups are deterministic.
		CreatedAt: time.Unix(1700000000+int64(len(f.accounts)), 0),
	}
	f.accounts[account.ID] = account
	return account
}

func (f *fakeStore) balance(accountID uuid.UUID) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[accountID].Balance
}

// fakeAccountRepo implements repositories.AccountRepository over fakeStore.
// The pgx.Tx argument is ignored; fakeStore.WithTransaction passes nil.
type fakeAccountRepo struct {
	store *fakeStore
	// numberTaken forces every generated account number to collide.
	numberTaken         bool
	existsByNumberCalls int
}

func (r *fakeAccountRepo) Create(ctx context.Context, tx pgx.Tx, account models.Account) (pgconn.CommandTag, error) {
	r.store.accounts[account.ID] = account
	return pgconn.CommandTag{}, nil
}

func (r *fakeAccountRepo) FindById(ctx context.Context, q repositories.Querier, accountID uuid.UUID) (models.Account, error) {
	account, ok := r.store.accounts[accountID]
	if !ok {
		return models.Account{}, pgx.ErrNoRows
	}
	return account, nil
}

func (r *fakeAccountRepo) FindByIdForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (models.Account, error) {
	return r.FindById(ctx, tx, accountID)
}

func (r *fakeAccountRepo) FindByUser(ctx context.Context, q repositories.Querier, userID uuid.UUID) (models.Account, error) {
	var found []models.Account
	for _, account := range r.store.accounts {
		if account.UserID == userID {
			found = append(found, account)
		}
	}
	if len(found) == 0 {
		return models.Account{}, pgx.ErrNoRows
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	return found[0], nil
}

func (r *fakeAccountRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, delta decimal.Decimal) error {
	account, ok := r.store.accounts[accountID]
	if !ok {
		return pgx.ErrNoRows
	}
	account.Balance = account.Balance.Add(delta)
	r.store.accounts[accountID] = account
	return nil
}

func (r *fakeAccountRepo) ExistsByNumber(ctx context.Context, tx pgx.Tx, accountNumber string) (bool, error) {
	r.existsByNumberCalls++
	if r.numberTaken {
		return true, nil
	}
	for _, account := range r.store.accounts {
		if account.AccountNumber == accountNumber {
			return true, nil
		}
	}
	return false, nil
}

// fakeTxnRepo implements repositories.TransactionRepository over fakeStore.
type fakeTxnRepo struct {
	store *fakeStore
	// failNext makes the next Create return this error, to exercise rollback.
	failNext error
	// lastQuerier records what FindByAccount read from.
	lastQuerier repositories.Querier
}

func (r *fakeTxnRepo) Create(ctx context.Context, tx pgx.Tx, txn models.Transaction) (pgconn.CommandTag, error) {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return pgconn.CommandTag{}, err
	}
	r.store.txns = append(r.store.txns, txn)
	return pgconn.CommandTag{}, nil
}

func (r *fakeTxnRepo) FindByAccount(ctx context.Context, q repositories.Querier, accountID uuid.UUID, page int, size int) ([]models.Transaction, int64, error) {
	r.lastQuerier = q
	var matched []models.Transaction
	for _, txn := range r.store.txns {
		if (txn.FromAccountID.Valid && txn.FromAccountID.UUID == accountID) ||
			(txn.ToAccountID.Valid && txn.ToAccountID.UUID == accountID) {
			matched = append(matched, txn)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	offset := (page - 1) * size
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// fakeUserRepo implements repositories.UserRepository over fakeStore.
type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) Exists(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	_, ok := r.store.users[userID]
	return ok, nil
}

func (r *fakeUserRepo) FindVerification(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (pkg.Tier, pkg.KYCStatus, error) {
	user, ok := r.store.users[userID]
	if !ok {
		return "", "", pgx.ErrNoRows
	}
	return user.Tier, user.KYCStatus, nil
}

// conflictRunner fails the first n transactions with a storage conflict, then
// delegates to the wrapped runner.
type conflictRunner struct {
	inner     TxRunner
	conflicts int
	calls     int
}

func (c *conflictRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	c.calls++
	if c.calls <= c.conflicts {
		return pkg.NewAppError(pkg.ErrStorageConflict, "serialization failure", nil)
	}
	return c.inner.WithTransaction(ctx, fn)
}

// readerStub stands in for the replica-routing pool; the fake repositories
// never issue SQL through it.
type readerStub struct{}

func (*readerStub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (*readerStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

// recordingPublisher captures published transactions.
type recordingPublisher struct {
	mu        sync.Mutex
	published []models.Transaction
}

func (p *recordingPublisher) PublishTransaction(traceID string, txn models.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, txn)
	return nil
}

func (p *recordingPublisher) Close() {}
