package ledger

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/goledger/internal/ledger/event"
	"github.com/shandysiswandi/goledger/internal/ledger/inbound"
	"github.com/shandysiswandi/goledger/internal/ledger/store"
	"github.com/shandysiswandi/goledger/internal/ledger/usecase"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/goledger/internal/pkg/pkguid"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	ID        pkguid.StringID
	EventID   pkguid.NumberID
}

// New wires the replay store, the rejection bus and its audit consumer, and
// the HTTP endpoints. The returned closer drains the consumer.
func New(dep Dependency) (func(context.Context) error, error) {
	policy, err := PolicyFromConfig(dep.Config)
	if err != nil {
		return nil, err
	}

	if dep.Goroutine == nil {
		dep.Goroutine = pkgroutine.NewManager(pkgroutine.DefaultMaxGoroutine)
	}

	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}

	if dep.EventID == nil {
		sf, err := pkguid.NewSnowflake()
		if err != nil {
			return nil, fmt.Errorf("init event id generator: %w", err)
		}
		dep.EventID = sf
	}

	settings := eventSettingsFromConfig(dep.Config)

	storage := store.NewInMemoryStore()
	bus := event.NewBus(settings.buffer)
	consumer := event.NewAuditConsumer(bus, event.AuditLog{}, event.ConsumerConfig{
		Workers:     settings.workers,
		MaxRetries:  settings.maxRetries,
		BaseBackoff: settings.baseBackoff,
	})
	consumer.Start()

	uc := usecase.New(usecase.Dependency{
		Store:   storage,
		Events:  bus,
		Runner:  dep.Goroutine,
		ID:      dep.ID,
		EventID: dep.EventID,
		Policy:  policy,
		RootCtx: dep.Context,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return consumer.Stop, nil
}
