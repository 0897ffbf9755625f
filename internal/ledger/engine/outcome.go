package engine

import "github.com/shandysiswandi/goledger/internal/ledger/entity"

// Outcome is the result of applying one transaction. A rejected outcome
// always carries a reason and a severity; an applied one carries neither.
type Outcome struct {
	Applied  bool
	Reason   entity.Reason
	Severity entity.Severity
}

func applied() Outcome {
	return Outcome{Applied: true}
}

// refused marks an expected business-rule rejection.
func refused(reason entity.Reason) Outcome {
	return Outcome{Reason: reason, Severity: entity.SeverityInfo}
}

// violated marks input that breaks the transaction protocol.
func violated(reason entity.Reason) Outcome {
	return Outcome{Reason: reason, Severity: entity.SeverityWarn}
}
