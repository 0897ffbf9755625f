package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/goledger/internal/ledger/engine"
	"github.com/shandysiswandi/goledger/internal/ledger/entity"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgerror"
	"github.com/shandysiswandi/goledger/internal/pkg/pkguid"
)

type Store interface {
	CreateReplay(ctx context.Context, meta entity.ReplayMeta) error
	UpdateMeta(ctx context.Context, replayID string, fn func(meta *entity.ReplayMeta)) error
	SaveResults(ctx context.Context, replayID string, accounts []entity.Account, rejections []entity.Rejection) error
	GetAccounts(ctx context.Context, replayID string) ([]entity.Account, entity.ReplayMeta, error)
	ListRejections(ctx context.Context, replayID string, filter RejectionFilter, page, pageSize int) ([]entity.Rejection, int, entity.ReplayMeta, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.RejectionEvent) error
}

// Runner starts f once capacity frees up. It gives up when waitCtx ends and
// otherwise runs f under runCtx.
type Runner interface {
	Go(waitCtx, runCtx context.Context, f func(ctx context.Context) error) error
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Store   Store
	Events  EventPublisher
	Runner  Runner
	Clock   Clock
	ID      pkguid.StringID
	EventID pkguid.NumberID
	Policy  engine.Policy
	Meter   metric.Meter
	Tracer  trace.Tracer
	RootCtx context.Context
}

type Usecase struct {
	store   Store
	events  EventPublisher
	runner  Runner
	clock   Clock
	id      pkguid.StringID
	eventID pkguid.NumberID
	policy  engine.Policy
	metrics instruments
	tracer  trace.Tracer
	rootCtx context.Context
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	meter := dep.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	tracer := dep.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &Usecase{
		store:   dep.Store,
		events:  dep.Events,
		runner:  dep.Runner,
		clock:   clock,
		id:      dep.ID,
		eventID: dep.EventID,
		policy:  dep.Policy,
		metrics: newInstruments(meter),
		tracer:  tracer,
		rootCtx: root,
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Replay runs the whole stream through a fresh ledger and returns the final
// snapshot. The returned error is only set when the stream itself breaks; the
// partial result is returned alongside it.
func (u *Usecase) Replay(ctx context.Context, r io.Reader) (ReplayResult, error) {
	return u.replay(ctx, "", r)
}

func (u *Usecase) Upload(ctx context.Context, r io.Reader) (UploadResult, error) {
	if u.store == nil || u.id == nil || u.runner == nil {
		return UploadResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	replayID := u.id.Generate()
	if err := u.store.CreateReplay(ctx, entity.ReplayMeta{
		ID:     replayID,
		Status: entity.ReplayStatusQueued,
	}); err != nil {
		return UploadResult{}, normalizeErr(err)
	}

	err := u.runner.Go(ctx, u.rootCtx, func(ctx context.Context) error {
		if err := u.processReplay(ctx, replayID, r); err != nil {
			slog.ErrorContext(ctx, "replay processing failed", "replay_id", replayID, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		if metaErr := u.store.UpdateMeta(context.WithoutCancel(ctx), replayID, func(meta *entity.ReplayMeta) {
			meta.Status = entity.ReplayStatusFailed
			meta.Err = err.Error()
		}); metaErr != nil {
			slog.ErrorContext(ctx, "failed to mark replay as failed", "replay_id", replayID, "error", metaErr)
		}
		return UploadResult{}, pkgerror.NewUnavailable(err)
	}

	return UploadResult{ReplayID: replayID}, nil
}

func (u *Usecase) Accounts(ctx context.Context, replayID string) (AccountsResult, error) {
	if replayID == "" {
		return AccountsResult{}, pkgerror.NewInvalidInput(errors.New("replay_id is required"))
	}

	accounts, meta, err := u.store.GetAccounts(ctx, replayID)
	if err != nil {
		return AccountsResult{}, mapStoreErr(err)
	}

	return AccountsResult{
		ReplayID: replayID,
		Meta:     meta,
		Accounts: accounts,
	}, nil
}

func (u *Usecase) Rejections(ctx context.Context, replayID string, filter RejectionFilter, page, pageSize int) (RejectionsResult, error) {
	if replayID == "" {
		return RejectionsResult{}, pkgerror.NewInvalidInput(errors.New("replay_id is required"))
	}

	if page < 1 || pageSize < 1 {
		return RejectionsResult{}, pkgerror.NewInvalidInput(errors.New("invalid pagination"))
	}

	rejections, total, meta, err := u.store.ListRejections(ctx, replayID, filter, page, pageSize)
	if err != nil {
		return RejectionsResult{}, mapStoreErr(err)
	}

	return RejectionsResult{
		ReplayID:   replayID,
		Status:     meta.Status,
		Rejections: rejections,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
	}, nil
}

func (u *Usecase) processReplay(ctx context.Context, replayID string, r io.Reader) error {
	startedAt := u.clock.Now().Unix()
	if err := u.store.UpdateMeta(ctx, replayID, func(meta *entity.ReplayMeta) {
		meta.Status = entity.ReplayStatusProcessing
		meta.StartedAt = startedAt
	}); err != nil {
		return err
	}

	res, err := u.replay(ctx, replayID, r)
	if err != nil {
		// the uploader keeps writing until the stream ends
		//nolint:errcheck // best effort drain
		_, _ = io.Copy(io.Discard, r)
	}

	endedAt := u.clock.Now().Unix()
	status := entity.ReplayStatusDone
	errMsg := ""
	if err != nil {
		status = entity.ReplayStatusFailed
		errMsg = err.Error()
	}

	if saveErr := u.store.SaveResults(ctx, replayID, res.Accounts, res.Rejections); saveErr != nil {
		return saveErr
	}

	if metaErr := u.store.UpdateMeta(ctx, replayID, func(meta *entity.ReplayMeta) {
		meta.Status = status
		meta.Err = errMsg
		meta.EndedAt = endedAt
		meta.TotalLines = res.TotalLines
		meta.ParsedOK = res.ParsedOK
		meta.ParseErr = res.ParseErr
		meta.Applied = res.Applied
		meta.Rejected = res.Rejected
	}); metaErr != nil {
		return metaErr
	}

	return err
}

func (u *Usecase) replay(ctx context.Context, replayID string, r io.Reader) (ReplayResult, error) {
	ctx, span := u.tracer.Start(ctx, "usecase.Replay", trace.WithAttributes(attribute.String("replay_id", replayID)))
	defer span.End()

	ledger := engine.New(u.policy)

	var res ReplayResult
	totalLines, parsedOK, parseErr, err := parseCSV(ctx, r, func(line int64, tx entity.Transaction) {
		out := ledger.Apply(tx)
		if out.Applied {
			res.Applied++
			u.metrics.recordApplied(ctx, tx.Kind)
			return
		}

		rej := entity.Rejection{Line: line, Tx: tx, Reason: out.Reason, Severity: out.Severity}
		res.Rejected++
		res.Rejections = append(res.Rejections, rej)
		u.reject(ctx, replayID, rej)
	})

	res.Accounts = ledger.Snapshot()
	res.TotalLines = totalLines
	res.ParsedOK = parsedOK
	res.ParseErr = parseErr
	u.metrics.recordInvalid(ctx, parseErr)

	span.SetAttributes(
		attribute.Int64("replay.lines", totalLines),
		attribute.Int64("replay.applied", res.Applied),
		attribute.Int64("replay.rejected", res.Rejected),
		attribute.Int("replay.accounts", len(res.Accounts)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "input stream failed")
	}

	return res, err
}

// reject turns a rejected outcome into a diagnostic. Protocol violations are
// also published so they can be audited.
func (u *Usecase) reject(ctx context.Context, replayID string, rej entity.Rejection) {
	u.metrics.recordRejected(ctx, rej)

	level := slog.LevelWarn
	msg := "transaction violates protocol"
	if rej.Severity == entity.SeverityInfo {
		level = slog.LevelInfo
		msg = "transaction rejected"
	}

	slog.Log(ctx, level, msg,
		"replay_id", replayID,
		"line", rej.Line,
		"kind", rej.Tx.Kind.String(),
		"client", rej.Tx.Client,
		"tx", rej.Tx.Tx,
		"reason", rej.Reason,
	)

	if rej.Severity != entity.SeverityWarn || u.events == nil || u.eventID == nil {
		return
	}

	event := entity.RejectionEvent{
		EventID:   u.eventID.Generate(),
		ReplayID:  replayID,
		Rejection: rej,
	}
	if err := u.events.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "replay_id", replayID, "event_id", event.EventID, "error", err)
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewNotFound("replay not found")
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
