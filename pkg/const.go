package pkg

const (
	HeaderTraceId string = "X-Trace-Id"
	HeaderUserId  string = "X-User-Id"
)

const (
	TraceId string = "trace_id"
)

// TransactionType tags a ledger entry; direction is encoded by the type
// together with which account columns are populated.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
)

type TransactionStatus string

const (
	// TransactionStatusCompleted is the only status the engine persists;
	// pending or failed movements never reach the ledger.
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Tier is the coarse verification classification governing transaction size.
type Tier string

const (
	Tier1 Tier = "Tier1"
	Tier2 Tier = "Tier2"
	Tier3 Tier = "Tier3"
)

// KYCStatus is the identity-verification state of a user.
type KYCStatus string

const (
	KYCUnverified KYCStatus = "unverified"
	KYCPending    KYCStatus = "pending"
	KYCVerified   KYCStatus = "verified"
	KYCRejected   KYCStatus = "rejected"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeBusiness AccountType = "business"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	// AccountStatusClosed is a soft close; rows referenced by the ledger are
	// never deleted.
	AccountStatusClosed AccountStatus = "closed"
)
