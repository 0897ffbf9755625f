package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// WithdrawalBoundary decides whether a withdrawal may leave the available
// balance at exactly zero.
type WithdrawalBoundary int

const (
	// BoundaryStrict requires the resulting available balance to be positive.
	BoundaryStrict WithdrawalBoundary = iota
	// BoundaryInclusive accepts a resulting available balance of zero.
	BoundaryInclusive
)

func (b WithdrawalBoundary) String() string {
	switch b {
	case BoundaryStrict:
		return "strict"
	case BoundaryInclusive:
		return "inclusive"
	default:
		return "unknown"
	}
}

// LockedAccounts decides what happens to deposits and withdrawals on a client
// that has already been charged back.
type LockedAccounts int

const (
	LockedAllow LockedAccounts = iota
	LockedReject
)

func (l LockedAccounts) String() string {
	switch l {
	case LockedAllow:
		return "allow"
	case LockedReject:
		return "reject"
	default:
		return "unknown"
	}
}

type Policy struct {
	WithdrawalBoundary WithdrawalBoundary
	LockedAccounts     LockedAccounts
	DisputeWithdrawals bool
}

// DefaultPolicy rejects withdrawals that would empty the account, does not
// enforce locks and lets withdrawals be disputed like deposits.
func DefaultPolicy() Policy {
	return Policy{
		WithdrawalBoundary: BoundaryStrict,
		LockedAccounts:     LockedAllow,
		DisputeWithdrawals: true,
	}
}

func (p Policy) covers(available decimal.Decimal) bool {
	if p.WithdrawalBoundary == BoundaryInclusive {
		return !available.IsNegative()
	}
	return available.IsPositive()
}

func ParseWithdrawalBoundary(value string) (WithdrawalBoundary, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "strict":
		return BoundaryStrict, nil
	case "inclusive":
		return BoundaryInclusive, nil
	default:
		return 0, fmt.Errorf("invalid withdrawal boundary: %s", value)
	}
}

func ParseLockedAccounts(value string) (LockedAccounts, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "allow":
		return LockedAllow, nil
	case "reject":
		return LockedReject, nil
	default:
		return 0, fmt.Errorf("invalid locked accounts policy: %s", value)
	}
}
