package usecase

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/shandysiswandi/goledger/internal/ledger/entity"
)

const instrumentationName = "github.com/shandysiswandi/goledger/internal/ledger/usecase"

type instruments struct {
	applied  metric.Int64Counter
	rejected metric.Int64Counter
	decode   metric.Int64Counter
}

func newInstruments(meter metric.Meter) instruments {
	return instruments{
		applied:  counter(meter, "ledger.transactions.applied", "Transactions applied to the ledger."),
		rejected: counter(meter, "ledger.transactions.rejected", "Transactions rejected by the ledger."),
		decode:   counter(meter, "ledger.records.invalid", "Input rows that could not be decoded."),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{transaction}"))
	if err != nil {
		slog.Warn("failed to create counter, falling back to noop", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

func (i instruments) recordApplied(ctx context.Context, kind entity.Kind) {
	i.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (i instruments) recordRejected(ctx context.Context, rej entity.Rejection) {
	i.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", rej.Tx.Kind.String()),
		attribute.String("reason", string(rej.Reason)),
		attribute.String("severity", string(rej.Severity)),
	))
}

func (i instruments) recordInvalid(ctx context.Context, n int64) {
	if n > 0 {
		i.decode.Add(ctx, n)
	}
}
