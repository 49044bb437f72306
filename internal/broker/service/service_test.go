package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brokerstore "weekchain/internal/broker/store"
	"weekchain/internal/outbox"
	"weekchain/internal/tier"
	"weekchain/pkg/domain"
	dErrors "weekchain/pkg/domain-errors"
)

func newService(t *testing.T) (*Service, *brokerstore.InMemory) {
	t.Helper()
	store := brokerstore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, tier.Default(), outbox.NewInMemory(), logger, nil), store
}

func TestGetStanding(t *testing.T) {
	ctx := context.Background()

	t.Run("derives tier from cumulative units", func(t *testing.T) {
		svc, store := newService(t)
		id := domain.BrokerID(uuid.New())
		_, _, err := store.IncrementUnits(ctx, id, 28)
		require.NoError(t, err)

		standing, err := svc.GetStanding(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tier.NameSilver, standing.TierName)
		assert.Equal(t, 28, standing.CumulativeUnits)
		assert.Equal(t, "0.05", standing.CommissionRate.String())
		assert.Equal(t, 1, standing.BonusUnits)
	})

	t.Run("unknown broker is NotFound", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.GetStanding(ctx, domain.BrokerID(uuid.New()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestCorrect(t *testing.T) {
	ctx := context.Background()

	t.Run("applies correction and returns fresh standing", func(t *testing.T) {
		svc, store := newService(t)
		id := domain.BrokerID(uuid.New())
		_, _, err := store.IncrementUnits(ctx, id, 50)
		require.NoError(t, err)

		standing, err := svc.Correct(ctx, id, -10)
		require.NoError(t, err)
		assert.Equal(t, 40, standing.CumulativeUnits)
		assert.Equal(t, tier.NameSilver, standing.TierName)
	})

	t.Run("rejects zero delta", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Correct(ctx, domain.BrokerID(uuid.New()), 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("emits a correction event", func(t *testing.T) {
		store := brokerstore.NewInMemory()
		ob := outbox.NewInMemory()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := New(store, tier.Default(), ob, logger, nil)

		id := domain.BrokerID(uuid.New())
		_, _, err := store.IncrementUnits(ctx, id, 20)
		require.NoError(t, err)

		_, err = svc.Correct(ctx, id, -3)
		require.NoError(t, err)

		pending, err := ob.ListUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, outbox.TopicBrokers, pending[0].Topic)
		assert.Equal(t, id.String(), pending[0].Key)
	})

	t.Run("rejects correction below zero", func(t *testing.T) {
		svc, store := newService(t)
		id := domain.BrokerID(uuid.New())
		_, _, err := store.IncrementUnits(ctx, id, 5)
		require.NoError(t, err)

		_, err = svc.Correct(ctx, id, -6)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	id := domain.BrokerID(uuid.New())
	_, _, err := store.IncrementUnits(ctx, id, 12)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, id))

	standing, err := svc.GetStanding(ctx, id)
	require.NoError(t, err)
	assert.False(t, standing.Active)
	assert.Equal(t, 12, standing.CumulativeUnits)
}
