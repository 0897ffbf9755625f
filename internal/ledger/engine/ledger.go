package engine

import (
	"github.com/shandysiswandi/goledger/internal/ledger/entity"
)

type Ledger struct {
	policy   Policy
	accounts map[entity.ClientID]*entity.Account
	order    []entity.ClientID
	history  map[entity.TxID]entity.Transaction
	disputed map[entity.TxID]struct{}
}

func New(policy Policy) *Ledger {
	return &Ledger{
		policy:   policy,
		accounts: make(map[entity.ClientID]*entity.Account),
		history:  make(map[entity.TxID]entity.Transaction),
		disputed: make(map[entity.TxID]struct{}),
	}
}

// Apply runs one transaction through the state machine. Transactions must be
// applied in input order. A rejected transaction leaves balances, history and
// the disputed set untouched.
func (l *Ledger) Apply(tx entity.Transaction) Outcome {
	if !tx.Kind.Valid() {
		return violated(entity.ReasonUnknownKind)
	}

	acc := l.account(tx.Client)

	switch tx.Kind {
	case entity.KindDeposit, entity.KindWithdrawal:
		return l.post(acc, tx)
	case entity.KindDispute:
		return l.dispute(acc, tx)
	case entity.KindResolve:
		return l.resolve(acc, tx)
	case entity.KindChargeback:
		return l.chargeback(acc, tx)
	default:
		return violated(entity.ReasonUnknownKind)
	}
}

// Snapshot returns a copy of every account in the order clients first appeared.
func (l *Ledger) Snapshot() []entity.Account {
	out := make([]entity.Account, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.accounts[id])
	}
	return out
}

func (l *Ledger) Account(id entity.ClientID) (entity.Account, bool) {
	acc, ok := l.accounts[id]
	if !ok {
		return entity.Account{}, false
	}
	return *acc, true
}

// Disputed reports whether tx is currently held by a dispute.
func (l *Ledger) Disputed(tx entity.TxID) bool {
	_, ok := l.disputed[tx]
	return ok
}

func (l *Ledger) account(id entity.ClientID) *entity.Account {
	if acc, ok := l.accounts[id]; ok {
		return acc
	}

	acc := &entity.Account{Client: id}
	l.accounts[id] = acc
	l.order = append(l.order, id)
	return acc
}

// post handles deposits and withdrawals. The amount is turned into a signed
// delta so both kinds share the same arithmetic.
func (l *Ledger) post(acc *entity.Account, tx entity.Transaction) Outcome {
	if !tx.Amount.Valid {
		return violated(entity.ReasonMissingAmount)
	}
	if _, ok := l.history[tx.Tx]; ok {
		return violated(entity.ReasonDuplicateTransaction)
	}
	if acc.Locked && l.policy.LockedAccounts == LockedReject {
		return refused(entity.ReasonAccountLocked)
	}

	delta := tx.Amount.Decimal
	if tx.Kind == entity.KindWithdrawal {
		delta = delta.Neg()
		if !l.policy.covers(acc.Available.Add(delta)) {
			return refused(entity.ReasonInsufficientFunds)
		}
	}

	acc.Available = acc.Available.Add(delta)
	acc.Total = acc.Total.Add(delta)
	l.history[tx.Tx] = tx

	return applied()
}

func (l *Ledger) dispute(acc *entity.Account, tx entity.Transaction) Outcome {
	orig, out := l.reference(tx, false)
	if !out.Applied {
		return out
	}
	if orig.Kind == entity.KindWithdrawal && !l.policy.DisputeWithdrawals {
		return violated(entity.ReasonWithdrawalNotDisputable)
	}

	amount := orig.Amount.Decimal
	acc.Available = acc.Available.Sub(amount)
	acc.Held = acc.Held.Add(amount)
	l.disputed[tx.Tx] = struct{}{}

	return applied()
}

func (l *Ledger) resolve(acc *entity.Account, tx entity.Transaction) Outcome {
	orig, out := l.reference(tx, true)
	if !out.Applied {
		return out
	}

	amount := orig.Amount.Decimal
	acc.Held = acc.Held.Sub(amount)
	acc.Available = acc.Available.Add(amount)
	delete(l.disputed, tx.Tx)

	return applied()
}

func (l *Ledger) chargeback(acc *entity.Account, tx entity.Transaction) Outcome {
	orig, out := l.reference(tx, true)
	if !out.Applied {
		return out
	}

	amount := orig.Amount.Decimal
	acc.Held = acc.Held.Sub(amount)
	acc.Total = acc.Total.Sub(amount)
	acc.Locked = true
	delete(l.disputed, tx.Tx)

	return applied()
}

// reference looks up the transaction a dispute, resolve or chargeback points
// at. wantDisputed is the disputed state the referenced transaction must be in.
func (l *Ledger) reference(tx entity.Transaction, wantDisputed bool) (entity.Transaction, Outcome) {
	orig, ok := l.history[tx.Tx]
	if !ok {
		return entity.Transaction{}, violated(entity.ReasonUnknownTransaction)
	}
	if orig.Client != tx.Client {
		return entity.Transaction{}, violated(entity.ReasonClientMismatch)
	}

	_, disputed := l.disputed[tx.Tx]
	if disputed && !wantDisputed {
		return entity.Transaction{}, violated(entity.ReasonAlreadyDisputed)
	}
	if !disputed && wantDisputed {
		return entity.Transaction{}, violated(entity.ReasonNotDisputed)
	}

	if !orig.Amount.Valid {
		return entity.Transaction{}, violated(entity.ReasonMissingAmount)
	}

	return orig, applied()
}
