//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"weekchain/internal/broker/store"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
	"weekchain/pkg/testutil/containers"
)

type PostgresBrokerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresBrokerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresBrokerSuite))
}

func (s *PostgresBrokerSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresBrokerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "commission_records", "brokers"))
}

// TestConcurrentIncrements verifies the atomic increment-and-read: under
// concurrent confirmations every goroutine must observe a distinct
// units-before snapshot and the final total must reflect every increment
// exactly once.
func (s *PostgresBrokerSuite) TestConcurrentIncrements() {
	ctx := context.Background()
	id := domain.BrokerID(uuid.New())
	const goroutines = 50

	type snapshot struct {
		before int
		err    error
	}
	results := make(chan snapshot, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			before, _, err := s.store.IncrementUnits(ctx, id, 1)
			results <- snapshot{before: before, err: err}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool, goroutines)
	for r := range results {
		s.Require().NoError(r.err)
		s.False(seen[r.before], "duplicate units-before snapshot %d", r.before)
		seen[r.before] = true
	}

	b, err := s.store.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal(goroutines, b.CumulativeUnits)
}

func (s *PostgresBrokerSuite) TestIncrementCreatesBroker() {
	ctx := context.Background()
	id := domain.BrokerID(uuid.New())

	before, after, err := s.store.IncrementUnits(ctx, id, 7)
	s.Require().NoError(err)
	s.Equal(0, before)
	s.Equal(7, after)

	b, err := s.store.FindByID(ctx, id)
	s.Require().NoError(err)
	s.True(b.Active)
	s.Equal(7, b.CumulativeUnits)
}

func (s *PostgresBrokerSuite) TestAdjustUnits() {
	ctx := context.Background()
	id := domain.BrokerID(uuid.New())
	_, _, err := s.store.IncrementUnits(ctx, id, 10)
	s.Require().NoError(err)

	after, err := s.store.AdjustUnits(ctx, id, -4)
	s.Require().NoError(err)
	s.Equal(6, after)

	_, err = s.store.AdjustUnits(ctx, id, -7)
	s.Require().True(errors.Is(err, sentinel.ErrInvalidState))

	_, err = s.store.AdjustUnits(ctx, domain.BrokerID(uuid.New()), 1)
	s.Require().True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresBrokerSuite) TestSetActive() {
	ctx := context.Background()
	id := domain.BrokerID(uuid.New())
	_, _, err := s.store.IncrementUnits(ctx, id, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.store.SetActive(ctx, id, false))
	b, err := s.store.FindByID(ctx, id)
	s.Require().NoError(err)
	s.False(b.Active)

	err = s.store.SetActive(ctx, domain.BrokerID(uuid.New()), false)
	s.Require().True(errors.Is(err, sentinel.ErrNotFound))
}
