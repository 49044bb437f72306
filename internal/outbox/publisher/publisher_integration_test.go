//go:build integration

package publisher_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"weekchain/internal/outbox"
	"weekchain/internal/outbox/publisher"
	"weekchain/pkg/testutil/containers"
)

// TestPublisherDrainsOutbox appends entries, runs the worker against a real
// broker and verifies the records arrive with key and outbox id intact, and
// that drained entries leave the backlog.
func TestPublisherDrainsOutbox(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redpanda := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store := outbox.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	first, err := outbox.NewEntry(outbox.TopicSales, "sale-1", outbox.EventSaleConfirmed, map[string]any{"sale_id": "sale-1"})
	require.NoError(t, err)
	second, err := outbox.NewEntry(outbox.TopicSales, "sale-2", outbox.EventSaleConfirmed, map[string]any{"sale_id": "sale-2"})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	worker, err := publisher.New(ctx, redpanda.Brokers, store, logger)
	require.NoError(t, err)
	defer worker.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(runCtx)
	}()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Brokers...),
		kgo.ConsumeTopics(outbox.TopicSales),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	for len(records) < 2 {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, fetches.Err())
		records = append(records, fetches.Records()...)
	}

	require.Len(t, records, 2)
	require.Equal(t, "sale-1", string(records[0].Key))
	require.Equal(t, "sale-2", string(records[1].Key))
	require.Equal(t, first.ID.String(), string(records[0].Headers[0].Value))

	// The backlog drains once both entries are produced.
	require.Eventually(t, func() bool {
		pending, err := store.ListUnpublished(ctx, 10)
		return err == nil && len(pending) == 0
	}, 10*time.Second, 100*time.Millisecond)

	stop()
	<-done
}
