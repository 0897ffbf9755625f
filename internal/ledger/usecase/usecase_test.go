package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shandysiswandi/goledger/internal/ledger/engine"
	"github.com/shandysiswandi/goledger/internal/ledger/entity"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgerror"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgroutine"
)

type testStore struct {
	mu         sync.RWMutex
	metas      map[string]entity.ReplayMeta
	accounts   map[string][]entity.Account
	rejections map[string][]entity.Rejection
}

func newTestStore() *testStore {
	return &testStore{
		metas:      make(map[string]entity.ReplayMeta),
		accounts:   make(map[string][]entity.Account),
		rejections: make(map[string][]entity.Rejection),
	}
}

func (s *testStore) CreateReplay(ctx context.Context, meta entity.ReplayMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[meta.ID] = meta
	return nil
}

func (s *testStore) UpdateMeta(ctx context.Context, replayID string, fn func(meta *entity.ReplayMeta)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.metas[replayID]
	if !ok {
		return pkgerror.ErrNotFound
	}
	fn(&meta)
	s.metas[replayID] = meta
	return nil
}

func (s *testStore) SaveResults(ctx context.Context, replayID string, accounts []entity.Account, rejections []entity.Rejection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metas[replayID]; !ok {
		return pkgerror.ErrNotFound
	}
	s.accounts[replayID] = accounts
	s.rejections[replayID] = rejections
	return nil
}

func (s *testStore) GetAccounts(ctx context.Context, replayID string) ([]entity.Account, entity.ReplayMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.metas[replayID]
	if !ok {
		return nil, entity.ReplayMeta{}, pkgerror.ErrNotFound
	}
	return s.accounts[replayID], meta, nil
}

func (s *testStore) ListRejections(ctx context.Context, replayID string, filter RejectionFilter, page, pageSize int) ([]entity.Rejection, int, entity.ReplayMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.metas[replayID]
	if !ok {
		return nil, 0, entity.ReplayMeta{}, pkgerror.ErrNotFound
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	total := 0
	items := make([]entity.Rejection, 0, pageSize)
	for _, rej := range s.rejections[replayID] {
		if !filter.Matches(rej) {
			continue
		}
		if total >= start && total < end {
			items = append(items, rej)
		}
		total++
	}

	return items, total, meta, nil
}

type testPublisher struct {
	mu     sync.Mutex
	events []entity.RejectionEvent
}

func (p *testPublisher) Publish(ctx context.Context, event entity.RejectionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type testNumberID struct {
	mu sync.Mutex
	n  int64
}

func (t *testNumberID) Generate() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return t.n
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

type syncRunner struct{}

func (syncRunner) Go(_, runCtx context.Context, f func(ctx context.Context) error) error {
	_ = f(runCtx)
	return nil
}

type staticID string

func (s staticID) Generate() string {
	return string(s)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func findAccount(t *testing.T, accounts []entity.Account, client entity.ClientID) entity.Account {
	t.Helper()
	for _, acc := range accounts {
		if acc.Client == client {
			return acc
		}
	}
	require.FailNow(t, "client not in snapshot", "client %d", client)
	return entity.Account{}
}

func assertAccount(t *testing.T, acc entity.Account, available, held, total string, locked bool) {
	t.Helper()
	assert.True(t, acc.Available.Equal(dec(available)), "available = %s, want %s", acc.Available, available)
	assert.True(t, acc.Held.Equal(dec(held)), "held = %s, want %s", acc.Held, held)
	assert.True(t, acc.Total.Equal(dec(total)), "total = %s, want %s", acc.Total, total)
	assert.Equal(t, locked, acc.Locked)
}

func TestReplayScenarios(t *testing.T) {
	t.Parallel()

	t.Run("deposits and withdrawal", func(t *testing.T) {
		t.Parallel()

		uc := New(Dependency{Policy: engine.DefaultPolicy()})
		res, err := uc.Replay(context.Background(), strings.NewReader(
			"type,client,tx,amount\ndeposit,1,1,5.0\ndeposit,2,2,7.0\nwithdrawal,1,3,2.0\n"))
		require.NoError(t, err)
		require.Len(t, res.Accounts, 2)

		assertAccount(t, findAccount(t, res.Accounts, 1), "3.0", "0.0", "3.0", false)
		assertAccount(t, findAccount(t, res.Accounts, 2), "7.0", "0.0", "7.0", false)
		assert.Equal(t, int64(3), res.Applied)
		assert.Zero(t, res.Rejected)
	})

	t.Run("dispute then chargeback", func(t *testing.T) {
		t.Parallel()

		uc := New(Dependency{Policy: engine.DefaultPolicy()})
		res, err := uc.Replay(context.Background(), strings.NewReader(
			"type,client,tx,amount\ndeposit,1,1,10.0\ndispute,1,1,\nchargeback,1,1,\n"))
		require.NoError(t, err)
		require.Len(t, res.Accounts, 1)

		assertAccount(t, res.Accounts[0], "0.0", "0.0", "0.0", true)
	})

	t.Run("resolve without dispute", func(t *testing.T) {
		t.Parallel()

		uc := New(Dependency{Policy: engine.DefaultPolicy()})
		res, err := uc.Replay(context.Background(), strings.NewReader(
			"type,client,tx,amount\ndeposit,1,1,10.0\nresolve,1,1,\n"))
		require.NoError(t, err)
		require.Len(t, res.Accounts, 1)

		assertAccount(t, res.Accounts[0], "10.0", "0.0", "10.0", false)
		require.Len(t, res.Rejections, 1)
		assert.Equal(t, entity.ReasonNotDisputed, res.Rejections[0].Reason)
		assert.Equal(t, int64(3), res.Rejections[0].Line)
	})

	t.Run("unknown kind is dropped", func(t *testing.T) {
		t.Parallel()

		uc := New(Dependency{Policy: engine.DefaultPolicy()})
		res, err := uc.Replay(context.Background(), strings.NewReader(
			"type,client,tx,amount\ndeposit,1,1,10.0\nrefund,1,2,4.0\nrefund,2,3,4.0\n"))
		require.NoError(t, err)
		require.Len(t, res.Accounts, 1)

		assertAccount(t, res.Accounts[0], "10", "0", "10", false)
		assert.Equal(t, int64(2), res.ParseErr)
		assert.Empty(t, res.Rejections)
	})
}

func TestReplayHonoursPolicy(t *testing.T) {
	t.Parallel()

	input := "type,client,tx,amount\ndeposit,1,1,10\nwithdrawal,1,2,10\n"

	strict := New(Dependency{Policy: engine.DefaultPolicy()})
	res, err := strict.Replay(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assertAccount(t, res.Accounts[0], "10", "0", "10", false)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, entity.ReasonInsufficientFunds, res.Rejections[0].Reason)
	assert.Equal(t, entity.SeverityInfo, res.Rejections[0].Severity)

	policy := engine.DefaultPolicy()
	policy.WithdrawalBoundary = engine.BoundaryInclusive
	inclusive := New(Dependency{Policy: policy})
	res, err = inclusive.Replay(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assertAccount(t, res.Accounts[0], "0", "0", "0", false)
	assert.Empty(t, res.Rejections)
}

func TestProcessReplayStoresResultsAndPublishes(t *testing.T) {
	store := newTestStore()
	events := &testPublisher{}
	clock := fixedClock{now: time.Unix(123, 0)}

	uc := New(Dependency{
		Store:   store,
		Events:  events,
		Clock:   clock,
		EventID: &testNumberID{},
		Policy:  engine.DefaultPolicy(),
	})

	replayID := "replay-1"
	require.NoError(t, store.CreateReplay(context.Background(), entity.ReplayMeta{ID: replayID}))

	csv := strings.Join([]string{
		"type, client, tx, amount",
		"deposit, 1, 1, 100",
		"withdrawal, 1, 2, 500",
		"dispute, 2, 1,",
		"dispute, 1, 1,",
		"not-a-kind, 1, 9, 1",
	}, "\n")

	require.NoError(t, uc.processReplay(context.Background(), replayID, strings.NewReader(csv)))

	accounts, meta, err := store.GetAccounts(context.Background(), replayID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReplayStatusDone, meta.Status)
	assert.Equal(t, int64(123), meta.StartedAt)
	assert.Equal(t, int64(123), meta.EndedAt)
	assert.Equal(t, int64(5), meta.TotalLines)
	assert.Equal(t, int64(4), meta.ParsedOK)
	assert.Equal(t, int64(1), meta.ParseErr)
	assert.Equal(t, int64(2), meta.Applied)
	assert.Equal(t, int64(2), meta.Rejected)

	assertAccount(t, findAccount(t, accounts, 1), "0", "100", "100", false)
	assertAccount(t, findAccount(t, accounts, 2), "0", "0", "0", false)

	rejections, total, _, err := store.ListRejections(context.Background(), replayID, RejectionFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rejections, 2)

	// only the client mismatch is a protocol violation
	require.Len(t, events.events, 1)
	got := events.events[0]
	assert.Equal(t, replayID, got.ReplayID)
	assert.Equal(t, int64(1), got.EventID)
	assert.Equal(t, entity.ReasonClientMismatch, got.Rejection.Reason)
}

func TestProcessReplayMarksFramingFailure(t *testing.T) {
	store := newTestStore()
	uc := New(Dependency{
		Store:  store,
		Clock:  fixedClock{now: time.Unix(456, 0)},
		Policy: engine.DefaultPolicy(),
	})

	replayID := "replay-2"
	require.NoError(t, store.CreateReplay(context.Background(), entity.ReplayMeta{ID: replayID}))

	csv := "deposit,1,1,5\ndeposit,1,2,1\"0\n"
	require.Error(t, uc.processReplay(context.Background(), replayID, strings.NewReader(csv)))

	accounts, meta, err := store.GetAccounts(context.Background(), replayID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReplayStatusFailed, meta.Status)
	assert.NotEmpty(t, meta.Err)
	assert.Len(t, accounts, 1, "partial snapshot keeps the account seen before the failure")
}

func TestUpload(t *testing.T) {
	t.Run("missing dependency", func(t *testing.T) {
		uc := New(Dependency{Policy: engine.DefaultPolicy()})
		_, err := uc.Upload(context.Background(), strings.NewReader(""))

		var perr *pkgerror.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, pkgerror.TypeServer, perr.Type())
	})

	t.Run("runs replay", func(t *testing.T) {
		store := newTestStore()
		uc := New(Dependency{
			Store:  store,
			Runner: syncRunner{},
			ID:     staticID("replay-3"),
			Policy: engine.DefaultPolicy(),
		})

		res, err := uc.Upload(context.Background(), strings.NewReader("deposit,7,1,2.5\n"))
		require.NoError(t, err)
		assert.Equal(t, "replay-3", res.ReplayID)

		got, err := uc.Accounts(context.Background(), res.ReplayID)
		require.NoError(t, err)
		assert.Equal(t, entity.ReplayStatusDone, got.Meta.Status)
		assert.Len(t, got.Accounts, 1)
	})

	t.Run("no free slot before the request ends", func(t *testing.T) {
		runner := pkgroutine.NewManager(1)
		release := make(chan struct{})
		require.NoError(t, runner.Go(context.Background(), context.Background(), func(context.Context) error {
			<-release
			return nil
		}))
		t.Cleanup(func() {
			close(release)
			_ = runner.Wait()
		})

		store := newTestStore()
		uc := New(Dependency{
			Store:  store,
			Runner: runner,
			ID:     staticID("replay-4"),
			Policy: engine.DefaultPolicy(),
		})

		reqCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			_, err := uc.Upload(reqCtx, strings.NewReader("deposit,7,1,2.5\n"))
			done <- err
		}()

		var err error
		select {
		case err = <-done:
		case <-time.After(2 * time.Second):
			require.FailNow(t, "upload kept waiting after the request context ended")
		}

		var perr *pkgerror.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, pkgerror.CodeUnavailable, perr.Code())
		assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode())
		assert.ErrorIs(t, err, pkgroutine.ErrNotStarted)

		store.mu.RLock()
		meta := store.metas["replay-4"]
		store.mu.RUnlock()
		assert.Equal(t, entity.ReplayStatusFailed, meta.Status)
		assert.NotEmpty(t, meta.Err)
	})

	t.Run("replay outlives the request", func(t *testing.T) {
		runner := pkgroutine.NewManager(1)
		store := newTestStore()
		uc := New(Dependency{
			Store:   store,
			Runner:  runner,
			ID:      staticID("replay-5"),
			Policy:  engine.DefaultPolicy(),
			RootCtx: context.Background(),
		})

		pr, pw := io.Pipe()
		reqCtx, cancel := context.WithCancel(context.Background())
		_, err := uc.Upload(reqCtx, pr)
		require.NoError(t, err)
		cancel()

		_, err = io.WriteString(pw, "deposit,7,1,2.5\n")
		require.NoError(t, err)
		require.NoError(t, pw.Close())
		require.NoError(t, runner.Wait())

		got, err := uc.Accounts(context.Background(), "replay-5")
		require.NoError(t, err)
		assert.Equal(t, entity.ReplayStatusDone, got.Meta.Status)
		assert.Len(t, got.Accounts, 1)
	})
}

func TestQueriesValidateInput(t *testing.T) {
	uc := New(Dependency{Store: newTestStore(), Policy: engine.DefaultPolicy()})
	ctx := context.Background()

	_, err := uc.Accounts(ctx, "")
	assertCode(t, err, pkgerror.CodeInvalidInput)

	_, err = uc.Accounts(ctx, "missing")
	assertCode(t, err, pkgerror.CodeNotFound)

	_, err = uc.Rejections(ctx, "", RejectionFilter{}, 1, 10)
	assertCode(t, err, pkgerror.CodeInvalidInput)

	_, err = uc.Rejections(ctx, "missing", RejectionFilter{}, 0, 10)
	assertCode(t, err, pkgerror.CodeInvalidInput)

	_, err = uc.Rejections(ctx, "missing", RejectionFilter{}, 1, 10)
	assertCode(t, err, pkgerror.CodeNotFound)
}

func assertCode(t *testing.T, err error, code pkgerror.Code) {
	t.Helper()
	var perr *pkgerror.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, code, perr.Code())
}

func TestRejectionFilterMatches(t *testing.T) {
	client := entity.ClientID(2)
	other := entity.ClientID(3)
	rej := entity.Rejection{
		Tx:       entity.Transaction{Kind: entity.KindDispute, Client: 2, Tx: 1},
		Reason:   entity.ReasonUnknownTransaction,
		Severity: entity.SeverityWarn,
	}

	assert.True(t, RejectionFilter{}.Matches(rej), "empty filter")
	assert.True(t, RejectionFilter{Severities: []entity.Severity{entity.SeverityWarn}, Client: &client}.Matches(rej))
	assert.False(t, RejectionFilter{Reasons: []entity.Reason{entity.ReasonInsufficientFunds}}.Matches(rej))
	assert.False(t, RejectionFilter{Client: &other}.Matches(rej))
}

func TestReplayLogsRejectionsBySeverity(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	uc := New(Dependency{Policy: engine.DefaultPolicy()})
	_, err := uc.Replay(context.Background(), strings.NewReader(
		"deposit,1,1,1\nwithdrawal,1,2,5\ndispute,1,9,\n"))
	require.NoError(t, err)

	levels := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if reason, ok := entry["reason"].(string); ok {
			levels[reason] = entry["level"].(string)
		}
	}

	assert.Equal(t, "INFO", levels[string(entity.ReasonInsufficientFunds)])
	assert.Equal(t, "WARN", levels[string(entity.ReasonUnknownTransaction)])
}

func TestReplayRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	uc := New(Dependency{Policy: engine.DefaultPolicy(), Meter: provider.Meter("test")})
	_, err := uc.Replay(context.Background(), strings.NewReader(
		"deposit,1,1,1\ndeposit,1,2,1\nwithdrawal,1,3,5\nbroken\n"))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), sums["ledger.transactions.applied"])
	assert.Equal(t, int64(1), sums["ledger.transactions.rejected"])
	assert.Equal(t, int64(1), sums["ledger.records.invalid"])
}

func TestReplayRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	uc := New(Dependency{Policy: engine.DefaultPolicy(), Tracer: provider.Tracer("test")})

	_, err := uc.Replay(context.Background(), strings.NewReader("deposit,1,1,1\nwithdrawal,1,2,5\n"))
	require.NoError(t, err)

	_, err = uc.Replay(context.Background(), strings.NewReader("deposit,1,1,1\ndeposit,1,2,3\"x\n"))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "usecase.Replay", ok.Name())
	assert.Equal(t, otelcodes.Unset, ok.Status().Code)

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range ok.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(2), attrs["replay.lines"].AsInt64())
	assert.Equal(t, int64(1), attrs["replay.applied"].AsInt64())
	assert.Equal(t, int64(1), attrs["replay.rejected"].AsInt64())

	failed := spans[1]
	assert.Equal(t, otelcodes.Error, failed.Status().Code)
	assert.NotEmpty(t, failed.Events(), "stream error should be recorded on the span")
}
