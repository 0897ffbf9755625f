package store

import (
	"context"
	"slices"
	"sync"

	"github.com/shandysiswandi/goledger/internal/ledger/entity"
	"github.com/shandysiswandi/goledger/internal/ledger/usecase"
	"github.com/shandysiswandi/goledger/internal/pkg/pkgerror"
)

// InMemoryStore keeps replay results for the lifetime of the process.
type InMemoryStore struct {
	mu      sync.RWMutex
	replays map[string]*replayRecord
}

type replayRecord struct {
	mu         sync.RWMutex
	meta       entity.ReplayMeta
	accounts   []entity.Account
	rejections []entity.Rejection
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		replays: make(map[string]*replayRecord),
	}
}

func (s *InMemoryStore) CreateReplay(ctx context.Context, meta entity.ReplayMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.replays[meta.ID]; exists {
		return pkgerror.NewConflict("replay already exists")
	}

	s.replays[meta.ID] = &replayRecord{
		meta: meta,
	}

	return nil
}

func (s *InMemoryStore) UpdateMeta(ctx context.Context, replayID string, fn func(meta *entity.ReplayMeta)) error {
	rec, err := s.get(replayID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	fn(&rec.meta)

	return nil
}

func (s *InMemoryStore) SaveResults(ctx context.Context, replayID string, accounts []entity.Account, rejections []entity.Rejection) error {
	rec, err := s.get(replayID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.accounts = slices.Clone(accounts)
	rec.rejections = slices.Clone(rejections)

	return nil
}

func (s *InMemoryStore) GetAccounts(ctx context.Context, replayID string) ([]entity.Account, entity.ReplayMeta, error) {
	rec, err := s.get(replayID)
	if err != nil {
		return nil, entity.ReplayMeta{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return slices.Clone(rec.accounts), rec.meta, nil
}

func (s *InMemoryStore) ListRejections(ctx context.Context, replayID string, filter usecase.RejectionFilter, page, pageSize int) ([]entity.Rejection, int, entity.ReplayMeta, error) {
	rec, err := s.get(replayID)
	if err != nil {
		return nil, 0, entity.ReplayMeta{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	total := 0
	start := (page - 1) * pageSize
	end := start + pageSize
	items := make([]entity.Rejection, 0, pageSize)

	for _, rej := range rec.rejections {
		if !filter.Matches(rej) {
			continue
		}

		if total >= start && total < end {
			items = append(items, rej)
		}
		total++
	}

	return items, total, rec.meta, nil
}

func (s *InMemoryStore) get(replayID string) (*replayRecord, error) {
	s.mu.RLock()
	rec, ok := s.replays[replayID]
	s.mu.RUnlock()
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	return rec, nil
}
