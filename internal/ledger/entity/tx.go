package entity

import "github.com/shopspring/decimal"

type (
	ClientID uint16
	TxID     uint32
)

// Transaction is one decoded input row. Amount is only valid for deposits
// and withdrawals.
type Transaction struct {
	Kind   Kind
	Client ClientID
	Tx     TxID
	Amount decimal.NullDecimal
}

// Account is the balance state of a single client.
type Account struct {
	Client    ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// Rejection is a transaction the ledger refused, with the input line it came from.
type Rejection struct {
	Line     int64
	Tx       Transaction
	Reason   Reason
	Severity Severity
}

type RejectionEvent struct {
	EventID   int64
	ReplayID  string
	Rejection Rejection
}
