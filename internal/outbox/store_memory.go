package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type InMemory struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *InMemory) ListUnpublished(_ context.Context, limit int) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.PublishedAt != nil {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	for _, e := range s.entries {
		if _, ok := marked[e.ID]; ok && e.PublishedAt == nil {
			t := at
			e.PublishedAt = &t
		}
	}
	return nil
}
