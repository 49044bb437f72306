package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"weekchain/internal/certificate"
	"weekchain/pkg/domain"
)

const defaultTTL = 5 * time.Minute

// Redis caches certificate records with a short TTL. Entries are invalidated
// on revocation, so the TTL only bounds staleness for rows mutated outside
// this service.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, ttl: defaultTTL}
}

// cachedCertificate is the Redis JSON layout. The sale id is serialized as a
// string; the typed uuid wrapper has no text marshaling of its own.
type cachedCertificate struct {
	Code          string    `json:"code"`
	SaleID        string    `json:"sale_id"`
	BuyerRef      string    `json:"buyer_ref"`
	PropertyRef   string    `json:"property_ref"`
	UnitCount     int       `json:"unit_count"`
	IssuedAt      time.Time `json:"issued_at"`
	IntegrityHash string    `json:"integrity_hash"`
	Revoked       bool      `json:"revoked"`
}

func key(code string) string { return "cert:" + code }

func (r *Redis) Get(ctx context.Context, code string) (*certificate.Certificate, bool, error) {
	raw, err := r.client.Get(ctx, key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var cc cachedCertificate
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	saleID, err := uuid.Parse(cc.SaleID)
	if err != nil {
		return nil, false, fmt.Errorf("cache decode sale id: %w", err)
	}
	return &certificate.Certificate{
		Code:          cc.Code,
		SaleID:        domain.SaleID(saleID),
		BuyerRef:      cc.BuyerRef,
		PropertyRef:   cc.PropertyRef,
		UnitCount:     cc.UnitCount,
		IssuedAt:      cc.IssuedAt,
		IntegrityHash: cc.IntegrityHash,
		Revoked:       cc.Revoked,
	}, true, nil
}

func (r *Redis) Set(ctx context.Context, c *certificate.Certificate) error {
	raw, err := json.Marshal(cachedCertificate{
		Code:          c.Code,
		SaleID:        c.SaleID.String(),
		BuyerRef:      c.BuyerRef,
		PropertyRef:   c.PropertyRef,
		UnitCount:     c.UnitCount,
		IssuedAt:      c.IssuedAt,
		IntegrityHash: c.IntegrityHash,
		Revoked:       c.Revoked,
	})
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := r.client.Set(ctx, key(c.Code), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, key(code)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
