package service

import (
	"context"
	"errors"
	"time"

	"weekchain/internal/certificate"
	certmetrics "weekchain/internal/certificate/metrics"
	"weekchain/internal/sale"
	dErrors "weekchain/pkg/domain-errors"
	"weekchain/pkg/platform/sentinel"
)

// maxCodeAttempts bounds collision retries. The code space is large enough
// that exhausting this means broken entropy or a misconfigured store, which
// is an operator problem, never a user-facing one.
const maxCodeAttempts = 5

// Minter derives and persists certificates. Mint is called inside the
// confirmation transaction, so the certificate commits or rolls back together
// with the ledger update and commission record.
type Minter struct {
	store   certificate.Store
	metrics *certmetrics.Metrics
}

func NewMinter(store certificate.Store, metrics *certmetrics.Metrics) *Minter {
	return &Minter{store: store, metrics: metrics}
}

// Mint issues the certificate for a confirmed sale. At most one certificate
// exists per sale: a retry with an already-minted sale id returns the
// previously minted certificate unchanged.
func (m *Minter) Mint(ctx context.Context, s *sale.Sale, issuedAt time.Time) (*certificate.Certificate, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := certificate.GenerateCode()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "certificate code generation failed")
		}

		cert := &certificate.Certificate{
			Code:        code,
			SaleID:      s.ID,
			BuyerRef:    s.BuyerRef,
			PropertyRef: s.PropertyRef,
			UnitCount:   s.UnitCount,
			IssuedAt:    issuedAt,
		}
		cert.IntegrityHash = certificate.ComputeIntegrityHash(cert)

		err = m.store.Create(ctx, cert)
		switch {
		case err == nil:
			m.metrics.IncrementIssued()
			return cert, nil
		case errors.Is(err, sentinel.ErrDuplicate):
			// Idempotent replay: the sale already has its certificate.
			return m.store.FindBySaleID(ctx, s.ID)
		case errors.Is(err, sentinel.ErrConflict):
			m.metrics.IncrementCodeCollisions()
			continue
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist certificate")
		}
	}
	return nil, dErrors.New(dErrors.CodeInternal, "certificate code collision retries exhausted")
}
