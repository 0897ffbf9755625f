// Package engine holds the ledger state machine.
//
// A Ledger owns every client account, the history of revertible transactions
// (deposits and withdrawals) and the set of currently disputed transaction
// ids. Apply is the only transition and it never logs: it reports an Outcome
// and leaves diagnostics to the caller. A Ledger is not safe for concurrent use.
package engine
