package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shandysiswandi/goledger/internal/ledger/entity"
)

// ErrDecode marks a single row that could not be turned into a transaction.
var ErrDecode = errors.New("invalid transaction record")

const headerField = "type"

// parseCSV decodes r row by row and hands every valid transaction to onTx in
// input order. Rows that fail to decode are logged and skipped; only a read
// error from the csv framing stops the stream.
func parseCSV(ctx context.Context, r io.Reader, onTx func(line int64, tx entity.Transaction)) (int64, int64, int64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	var totalLines int64
	var parsedOK int64
	var parseErr int64

	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErr++
			slog.WarnContext(ctx, "failed to read csv line", "error", err)
			return totalLines, parsedOK, parseErr, err
		}

		line, _ := reader.FieldPos(0)
		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		totalLines++
		tx, err := parseRecord(record)
		if err != nil {
			parseErr++
			slog.WarnContext(ctx, "failed to parse csv record", "line", line, "error", err)
			continue
		}

		parsedOK++
		onTx(int64(line), tx)
	}

	return totalLines, parsedOK, parseErr, nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), headerField)
}

// parseRecord decodes "type,client,tx[,amount]".
func parseRecord(record []string) (entity.Transaction, error) {
	if len(record) != 3 && len(record) != 4 {
		return entity.Transaction{}, fmt.Errorf("%w: expected 3 or 4 fields, got %d", ErrDecode, len(record))
	}

	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	kind, err := parseKind(record[0])
	if err != nil {
		return entity.Transaction{}, err
	}

	client, err := strconv.ParseUint(record[1], 10, 16)
	if err != nil {
		return entity.Transaction{}, fmt.Errorf("%w: invalid client: %w", ErrDecode, err)
	}

	txID, err := strconv.ParseUint(record[2], 10, 32)
	if err != nil {
		return entity.Transaction{}, fmt.Errorf("%w: invalid tx: %w", ErrDecode, err)
	}

	tx := entity.Transaction{
		Kind:   kind,
		Client: entity.ClientID(client),
		Tx:     entity.TxID(txID),
	}

	// dispute, resolve and chargeback reference an earlier amount
	if !kind.Revertible() {
		return tx, nil
	}

	amount, err := parseAmount(record)
	if err != nil {
		return entity.Transaction{}, fmt.Errorf("%w: %s: %w", ErrDecode, kind, err)
	}
	tx.Amount = decimal.NewNullDecimal(amount)

	return tx, nil
}

func parseAmount(record []string) (decimal.Decimal, error) {
	if len(record) < 4 || record[3] == "" {
		return decimal.Decimal{}, errors.New("amount is required")
	}

	amount, err := decimal.NewFromString(record[3])
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount: %w", err)
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount: %s", record[3])
	}

	return amount, nil
}

// parseKind matches the keyword exactly as written in the input.
func parseKind(value string) (entity.Kind, error) {
	switch value {
	case "deposit":
		return entity.KindDeposit, nil
	case "withdrawal":
		return entity.KindWithdrawal, nil
	case "dispute":
		return entity.KindDispute, nil
	case "resolve":
		return entity.KindResolve, nil
	case "chargeback":
		return entity.KindChargeback, nil
	default:
		return 0, fmt.Errorf("%w: invalid tx type: %s", ErrDecode, value)
	}
}
