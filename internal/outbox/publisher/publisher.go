// Package publisher drains the outbox into Kafka. One worker per process is
// enough; MarkPublished is idempotent, so a crash between produce and mark
// only causes re-delivery, never loss. Consumers are expected to dedupe on
// the entry id carried in the record key headers.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"weekchain/internal/outbox"
)

const (
	pollInterval = 500 * time.Millisecond
	batchSize    = 100
)

type Worker struct {
	store  outbox.Store
	client *kgo.Client
	logger *slog.Logger
}

// New connects to Kafka and ensures the event topics exist.
func New(ctx context.Context, brokers []string, store outbox.Store, logger *slog.Logger) (*Worker, error) {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, err
	}

	adm := kadm.NewClient(client)
	topics := []string{outbox.TopicSales, outbox.TopicCertificates, outbox.TopicBrokers}
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, topics...); err != nil {
		// Topic existence errors are fine; anything else surfaces on produce.
		logger.WarnContext(ctx, "ensure topics", "error", err)
	}

	return &Worker{store: store, client: client, logger: logger}, nil
}

// Run drains the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.drainOnce(ctx); err != nil && ctx.Err() == nil {
					w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
				}
			}
		}
	})
	return g.Wait()
}

// Close flushes buffered records and releases the Kafka client.
func (w *Worker) Close() {
	w.client.Close()
}

func (w *Worker) drainOnce(ctx context.Context) error {
	entries, err := w.store.ListUnpublished(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		record := &kgo.Record{
			Topic:   e.Topic,
			Key:     []byte(e.Key),
			Value:   e.Payload,
			Headers: []kgo.RecordHeader{{Key: "outbox_id", Value: []byte(e.ID.String())}},
		}
		if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			w.logger.ErrorContext(ctx, "produce outbox entry",
				"error", err,
				"topic", e.Topic,
				"outbox_id", e.ID,
			)
			break // keep ordering: do not skip ahead of a failed entry
		}
		published = append(published, e.ID)
	}

	if len(published) == 0 {
		return nil
	}
	return w.store.MarkPublished(ctx, published, time.Now())
}
