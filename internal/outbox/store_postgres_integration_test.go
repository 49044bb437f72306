//go:build integration

package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"weekchain/internal/outbox"
	txcontext "weekchain/pkg/platform/tx"
	"weekchain/pkg/testutil/containers"
)

type PostgresOutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *outbox.Postgres
}

func TestPostgresOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresOutboxSuite))
}

func (s *PostgresOutboxSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = outbox.NewPostgres(s.postgres.DB)
}

func (s *PostgresOutboxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *PostgresOutboxSuite) newEntry(key string) *outbox.Entry {
	e, err := outbox.NewEntry(outbox.TopicSales, key, outbox.EventSaleConfirmed, map[string]any{"sale_id": key})
	s.Require().NoError(err)
	return e
}

func (s *PostgresOutboxSuite) TestAppendAndDrain() {
	ctx := context.Background()
	first := s.newEntry("sale-1")
	second := s.newEntry("sale-2")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	pending, err := s.store.ListUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{first.ID}, time.Now()))
	pending, err = s.store.ListUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)
}

// TestAppendRollsBackWithTransaction pins the transactional-outbox property:
// an entry appended inside a rolled-back transaction never becomes visible.
func (s *PostgresOutboxSuite) TestAppendRollsBackWithTransaction() {
	ctx := context.Background()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(txcontext.WithTx(ctx, tx), s.newEntry("sale-9")))
	s.Require().NoError(tx.Rollback())

	pending, err := s.store.ListUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *PostgresOutboxSuite) TestMarkPublishedIsIdempotent() {
	ctx := context.Background()
	e := s.newEntry("sale-1")
	s.Require().NoError(s.store.Append(ctx, e))

	firstAt := time.Now()
	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{e.ID}, firstAt))
	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{e.ID}, firstAt.Add(time.Hour)))

	var publishedAt time.Time
	err := s.postgres.DB.QueryRowContext(ctx,
		"SELECT published_at FROM outbox WHERE id = $1", e.ID).Scan(&publishedAt)
	s.Require().NoError(err)
	s.WithinDuration(firstAt, publishedAt, time.Second)
}
