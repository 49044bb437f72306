package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"weekchain/internal/sale"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
)

// InMemory is the development and test implementation of the sales ledger.
// Copies in, copies out: callers never share memory with the store.
type InMemory struct {
	mu    sync.RWMutex
	sales map[uuid.UUID]*sale.Sale
}

func NewInMemory() *InMemory {
	return &InMemory{sales: make(map[uuid.UUID]*sale.Sale)}
}

func (s *InMemory) Create(_ context.Context, sl *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := uuid.UUID(sl.ID)
	if _, exists := s.sales[key]; exists {
		return sentinel.ErrDuplicate
	}
	cp := *sl
	s.sales[key] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.SaleID) (*sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.sales[uuid.UUID(id)]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (s *InMemory) UpdateStatus(_ context.Context, sl *sale.Sale, from sale.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sales[uuid.UUID(sl.ID)]
	if !exists {
		return sentinel.ErrNotFound
	}
	if stored.Status != from {
		return sentinel.ErrInvalidState
	}
	stored.Status = sl.Status
	stored.ConfirmedAt = sl.ConfirmedAt
	return nil
}

func (s *InMemory) Totals(_ context.Context) (sale.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := sale.Totals{GrossVolume: decimal.Zero}
	for _, stored := range s.sales {
		if stored.Status != sale.StatusConfirmed {
			continue
		}
		t.ConfirmedCount++
		t.Units += int64(stored.UnitCount)
		t.GrossVolume = t.GrossVolume.Add(stored.GrossAmount)
	}
	return t, nil
}
