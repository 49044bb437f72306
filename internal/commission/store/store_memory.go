package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"weekchain/internal/commission"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*commission.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[uuid.UUID]*commission.Record)}
}

func (s *InMemory) Create(_ context.Context, rec *commission.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := uuid.UUID(rec.SaleID)
	if _, exists := s.records[key]; exists {
		return sentinel.ErrDuplicate
	}
	cp := *rec
	s.records[key] = &cp
	return nil
}

func (s *InMemory) FindBySaleID(_ context.Context, saleID domain.SaleID) (*commission.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[uuid.UUID(saleID)]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}
