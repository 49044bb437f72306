package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"weekchain/internal/certificate"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
)

type InMemory struct {
	mu     sync.RWMutex
	byCode map[string]*certificate.Certificate
	bySale map[uuid.UUID]string
}

func NewInMemory() *InMemory {
	return &InMemory{
		byCode: make(map[string]*certificate.Certificate),
		bySale: make(map[uuid.UUID]string),
	}
}

func (s *InMemory) Create(_ context.Context, c *certificate.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saleKey := uuid.UUID(c.SaleID)
	if _, exists := s.bySale[saleKey]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.byCode[c.Code]; exists {
		return sentinel.ErrConflict
	}
	cp := *c
	s.byCode[c.Code] = &cp
	s.bySale[saleKey] = c.Code
	return nil
}

func (s *InMemory) FindByCode(_ context.Context, code string) (*certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByCodeLocked(code)
}

func (s *InMemory) FindByHash(_ context.Context, hash string) (*certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.byCode {
		if c.IntegrityHash == hash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindBySaleID(_ context.Context, saleID domain.SaleID) (*certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, exists := s.bySale[uuid.UUID(saleID)]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return s.findByCodeLocked(code)
}

func (s *InMemory) SetRevoked(_ context.Context, code string, revoked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.byCode[code]
	if !exists {
		return sentinel.ErrNotFound
	}
	c.Revoked = revoked
	return nil
}

func (s *InMemory) ListRecent(_ context.Context, limit int) ([]*certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*certificate.Certificate, 0, len(s.byCode))
	for _, c := range s.byCode {
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].IssuedAt.After(all[j].IssuedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// findByCodeLocked expects at least a read lock to be held.
func (s *InMemory) findByCodeLocked(code string) (*certificate.Certificate, error) {
	c, exists := s.byCode[code]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}
