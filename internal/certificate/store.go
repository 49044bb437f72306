package certificate

import (
	"context"

	"weekchain/pkg/domain"
)

// Store persists certificates. Uniqueness of sale_id and of the certificate
// code is enforced by the persistence layer, not by application-level
// locking, so the constraints hold across multiple service instances.
type Store interface {
	// Create inserts a certificate. Returns sentinel.ErrDuplicate when a
	// certificate already exists for the same sale (idempotent mint replay)
	// and sentinel.ErrConflict when the generated code collides with another
	// sale's certificate (caller regenerates and retries).
	Create(ctx context.Context, c *Certificate) error
	// FindByCode returns sentinel.ErrNotFound for unknown codes.
	FindByCode(ctx context.Context, code string) (*Certificate, error)
	// FindByHash returns sentinel.ErrNotFound for unknown hashes.
	FindByHash(ctx context.Context, hash string) (*Certificate, error)
	// FindBySaleID returns sentinel.ErrNotFound when the sale has no certificate.
	FindBySaleID(ctx context.Context, saleID domain.SaleID) (*Certificate, error)
	// SetRevoked flips the revocation flag, preserving the row for audit.
	SetRevoked(ctx context.Context, code string, revoked bool) error
	// ListRecent returns the most recently issued certificates, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Certificate, error)
}
