package ledger

import (
	"fmt"
	"time"

	"github.com/shandysiswandi/goledger/internal/ledger/engine"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgconfig"
)

// Defaults returns the fallback value of every ledger config key.
func Defaults() map[string]any {
	return map[string]any{
		"ledger.policy.withdrawal_boundary": engine.BoundaryStrict.String(),
		"ledger.policy.locked_accounts":     engine.LockedAllow.String(),
		"ledger.policy.dispute_withdrawals": true,
		"ledger.events.workers":             4,
		"ledger.events.max_retries":         3,
		"ledger.events.buffer":              512,
		"ledger.events.backoff_ms":          200,
		"output.precision":                  -1,
	}
}

// PolicyFromConfig builds the engine policy from the ledger.policy.* keys.
func PolicyFromConfig(cfg pkgconfig.Config) (engine.Policy, error) {
	policy := engine.DefaultPolicy()

	boundary, err := engine.ParseWithdrawalBoundary(cfg.GetString("ledger.policy.withdrawal_boundary"))
	if err != nil {
		return engine.Policy{}, fmt.Errorf("ledger.policy.withdrawal_boundary: %w", err)
	}
	policy.WithdrawalBoundary = boundary

	locked, err := engine.ParseLockedAccounts(cfg.GetString("ledger.policy.locked_accounts"))
	if err != nil {
		return engine.Policy{}, fmt.Errorf("ledger.policy.locked_accounts: %w", err)
	}
	policy.LockedAccounts = locked

	if cfg.IsSet("ledger.policy.dispute_withdrawals") {
		policy.DisputeWithdrawals = cfg.GetBool("ledger.policy.dispute_withdrawals")
	}

	return policy, nil
}

// Precision returns output.precision; negative means amounts print as held.
func Precision(cfg pkgconfig.Config) int32 {
	if !cfg.IsSet("output.precision") {
		return -1
	}
	p := cfg.GetInt("output.precision")
	if p < 0 {
		return -1
	}
	return int32(min(p, 28))
}

type eventSettings struct {
	buffer      int
	workers     int
	maxRetries  int
	baseBackoff time.Duration
}

func eventSettingsFromConfig(cfg pkgconfig.Config) eventSettings {
	s := eventSettings{
		buffer:      512,
		workers:     4,
		maxRetries:  3,
		baseBackoff: 200 * time.Millisecond,
	}
	if cfg.IsSet("ledger.events.buffer") {
		s.buffer = int(cfg.GetInt("ledger.events.buffer"))
	}
	if cfg.IsSet("ledger.events.workers") {
		s.workers = int(cfg.GetInt("ledger.events.workers"))
	}
	if cfg.IsSet("ledger.events.max_retries") {
		s.maxRetries = int(cfg.GetInt("ledger.events.max_retries"))
	}
	if cfg.IsSet("ledger.events.backoff_ms") {
		s.baseBackoff = time.Duration(cfg.GetInt("ledger.events.backoff_ms")) * time.Millisecond
	}
	return s
}
