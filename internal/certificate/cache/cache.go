// Package cache is the read-through cache in front of the certificate store,
// keeping the public verification path to one Redis hit plus one hash
// computation under high unauthenticated query volume. Only the certificate
// record is cached, never the verdict: verification recomputes the integrity
// hash from the record's own fields on every call.
package cache

import (
	"context"

	"weekchain/internal/certificate"
)

// Cache is keyed by certificate code. A miss is (nil, false, nil); errors are
// reserved for backend failures, which callers treat as a miss so a Redis
// outage degrades to direct store reads instead of failing verifications.
type Cache interface {
	Get(ctx context.Context, code string) (*certificate.Certificate, bool, error)
	Set(ctx context.Context, c *certificate.Certificate) error
	// Invalidate drops the entry, used when revocation flips the stored row.
	Invalidate(ctx context.Context, code string) error
}

// Noop disables caching; every lookup goes to the store.
type Noop struct{}

func (Noop) Get(context.Context, string) (*certificate.Certificate, bool, error) {
	return nil, false, nil
}
func (Noop) Set(context.Context, *certificate.Certificate) error { return nil }
func (Noop) Invalidate(context.Context, string) error            { return nil }
