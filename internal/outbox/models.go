// Package outbox implements the transactional outbox for domain events.
// Events are appended in the same transaction as the state change they
// describe and published to Kafka by a background worker, so downstream
// consumers see an event exactly when the corresponding commit happened.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics events are published to.
const (
	TopicSales        = "weekchain.sales"
	TopicCertificates = "weekchain.certificates"
	TopicBrokers      = "weekchain.brokers"
)

// Event types carried in payloads.
const (
	EventSaleConfirmed      = "sale.confirmed"
	EventCertificateIssued  = "certificate.issued"
	EventCertificateRevoked = "certificate.revoked"
	EventBrokerCorrected    = "broker.units_corrected"
)

// Entry is one outbox row. Key is the Kafka partition key (sale id or
// certificate code) so per-entity ordering survives partitioning.
type Entry struct {
	ID          uuid.UUID
	Topic       string
	Key         string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Store persists outbox entries. Append is transaction-aware on Postgres so
// the event commits atomically with the state it describes.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	// ListUnpublished returns oldest-first entries not yet handed to Kafka.
	ListUnpublished(ctx context.Context, limit int) ([]*Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// NewEntry marshals an event payload into a ready-to-append entry.
func NewEntry(topic, key, eventType string, fields map[string]any) (*Entry, error) {
	payload := map[string]any{"type": eventType, "occurred_at": time.Now().UTC().Format(time.RFC3339Nano)}
	for k, v := range fields {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return &Entry{
		ID:        uuid.New(),
		Topic:     topic,
		Key:       key,
		Payload:   raw,
		CreatedAt: time.Now(),
	}, nil
}
