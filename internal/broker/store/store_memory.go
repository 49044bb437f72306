package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"weekchain/internal/broker"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	brokers map[uuid.UUID]*broker.Broker
}

func NewInMemory() *InMemory {
	return &InMemory{brokers: make(map[uuid.UUID]*broker.Broker)}
}

func (s *InMemory) IncrementUnits(_ context.Context, id domain.BrokerID, n int) (int, int, error) {
	if n <= 0 {
		return 0, 0, sentinel.ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	b, exists := s.brokers[uuid.UUID(id)]
	if !exists {
		b = &broker.Broker{ID: id, Active: true, CreatedAt: now}
		s.brokers[uuid.UUID(id)] = b
	}
	before := b.CumulativeUnits
	b.CumulativeUnits += n
	b.UpdatedAt = now
	return before, b.CumulativeUnits, nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.BrokerID) (*broker.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.brokers[uuid.UUID(id)]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *InMemory) AdjustUnits(_ context.Context, id domain.BrokerID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.brokers[uuid.UUID(id)]
	if !exists {
		return 0, sentinel.ErrNotFound
	}
	if b.CumulativeUnits+delta < 0 {
		return 0, sentinel.ErrInvalidState
	}
	b.CumulativeUnits += delta
	b.UpdatedAt = time.Now()
	return b.CumulativeUnits, nil
}

func (s *InMemory) SetActive(_ context.Context, id domain.BrokerID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.brokers[uuid.UUID(id)]
	if !exists {
		return sentinel.ErrNotFound
	}
	b.Active = active
	b.UpdatedAt = time.Now()
	return nil
}
