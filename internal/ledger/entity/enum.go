package entity

// Kind is the closed set of transaction kinds a replay understands.
type Kind int

const (
	KindDeposit Kind = iota + 1
	KindWithdrawal
	KindDispute
	KindResolve
	KindChargeback
)

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindDispute:
		return "dispute"
	case KindResolve:
		return "resolve"
	case KindChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= KindDeposit && k <= KindChargeback
}

// Revertible reports whether transactions of this kind are kept in the
// history so a later dispute can reference them.
func (k Kind) Revertible() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Severity separates expected business rejections from protocol violations.
type Severity string

const (
	SeverityNone Severity = ""
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
)

// Reason names why a transaction was not applied.
type Reason string

const (
	ReasonNone                    Reason = ""
	ReasonInsufficientFunds       Reason = "insufficient_funds"
	ReasonAccountLocked           Reason = "account_locked"
	ReasonMissingAmount           Reason = "missing_amount"
	ReasonDuplicateTransaction    Reason = "duplicate_transaction"
	ReasonUnknownTransaction      Reason = "unknown_transaction"
	ReasonClientMismatch          Reason = "client_mismatch"
	ReasonAlreadyDisputed         Reason = "already_disputed"
	ReasonNotDisputed             Reason = "not_disputed"
	ReasonWithdrawalNotDisputable Reason = "withdrawal_not_disputable"
	ReasonUnknownKind             Reason = "unknown_kind"
)

type ReplayStatus string

const (
	ReplayStatusQueued     ReplayStatus = "QUEUED"
	ReplayStatusProcessing ReplayStatus = "PROCESSING"
	ReplayStatusDone       ReplayStatus = "DONE"
	ReplayStatusFailed     ReplayStatus = "FAILED"
)
