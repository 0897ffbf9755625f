// Package report writes ledger snapshots to external sinks.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/shandysiswandi/goledger/internal/ledger/entity"
)

var header = []string{"client", "available", "held", "total", "locked"}

// CSV writes accounts as "client,available,held,total,locked" rows.
type CSV struct {
	// Precision fixes the number of decimal places. A negative value prints
	// amounts exactly as held.
	Precision int32
}

func (c CSV) WriteAccounts(w io.Writer, accounts []entity.Account) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, acc := range accounts {
		row := []string{
			strconv.FormatUint(uint64(acc.Client), 10),
			c.format(acc.Available),
			c.format(acc.Held),
			c.format(acc.Total),
			strconv.FormatBool(acc.Locked),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write client %d: %w", acc.Client, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

func (c CSV) format(d decimal.Decimal) string {
	if c.Precision < 0 {
		return d.String()
	}
	return d.StringFixed(c.Precision)
}
