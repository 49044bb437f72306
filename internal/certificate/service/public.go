package service

import (
	"context"
	"errors"
	"log/slog"

	"weekchain/internal/certificate"
	"weekchain/internal/certificate/cache"
	"weekchain/internal/outbox"
	"weekchain/internal/sale"
	dErrors "weekchain/pkg/domain-errors"
	"weekchain/pkg/platform/sentinel"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// Stats are the public aggregate counters shown on the transparency page.
type Stats struct {
	TotalSales  int64
	TotalUnits  int64
	GrossVolume string
}

// Public serves the unauthenticated transparency surface (recent feed,
// aggregate stats) plus the admin-only revocation operation.
type Public struct {
	certs  certificate.Store
	sales  sale.Store
	cache  cache.Cache
	outbox outbox.Store
	logger *slog.Logger
}

func NewPublic(certs certificate.Store, sales sale.Store, c cache.Cache, ob outbox.Store, logger *slog.Logger) *Public {
	if c == nil {
		c = cache.Noop{}
	}
	return &Public{certs: certs, sales: sales, cache: c, outbox: ob, logger: logger}
}

// ListRecent returns the newest certificates as public listings. Season and
// sale amount come from the underlying sale row; the buyer reference never
// leaves this package.
func (p *Public) ListRecent(ctx context.Context, limit int) ([]*certificate.PublicListing, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	certs, err := p.certs.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list certificates")
	}

	listings := make([]*certificate.PublicListing, 0, len(certs))
	for _, c := range certs {
		listing := &certificate.PublicListing{
			PropertyRef: c.PropertyRef,
			UnitCount:   c.UnitCount,
			IssuedAt:    c.IssuedAt,
			Verified:    !c.Revoked && certificate.HashMatches(c),
		}
		s, err := p.sales.FindByID(ctx, c.SaleID)
		switch {
		case err == nil:
			listing.Season = s.Season
			listing.Amount = s.GrossAmount.StringFixed(2)
		case errors.Is(err, sentinel.ErrNotFound):
			// Certificate without its sale row means a partial restore or
			// manual intervention; keep the listing but flag it.
			p.logger.Warn("certificate without backing sale", "code", c.Code)
			listing.Verified = false
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load sale for listing")
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// GetStats aggregates confirmed sales for the public counters.
func (p *Public) GetStats(ctx context.Context) (*Stats, error) {
	totals, err := p.sales.Totals(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to aggregate sales")
	}
	return &Stats{
		TotalSales:  totals.ConfirmedCount,
		TotalUnits:  totals.Units,
		GrossVolume: totals.GrossVolume.StringFixed(2),
	}, nil
}

// Revoke flips the revocation flag on a certificate. The row and its hash are
// preserved so the public page can keep showing the revoked state; broker
// units and commission records are untouched.
func (p *Public) Revoke(ctx context.Context, code, reason string) error {
	cert, err := p.certs.FindByCode(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "certificate not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "certificate lookup failed")
	}
	if cert.Revoked {
		return nil
	}

	if err := p.certs.SetRevoked(ctx, code, true); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
	}
	if err := p.cache.Invalidate(ctx, code); err != nil {
		p.logger.Warn("certificate cache invalidation failed", "code", code, "error", err)
	}

	entry, err := outbox.NewEntry(outbox.TopicCertificates, code, outbox.EventCertificateRevoked, map[string]any{
		"code":    code,
		"sale_id": cert.SaleID.String(),
		"reason":  reason,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build revocation event")
	}
	if err := p.outbox.Append(ctx, entry); err != nil {
		// Revocation already committed; the event is best-effort here and the
		// next reconciliation sweep picks up the gap.
		p.logger.Error("failed to append revocation event", "code", code, "error", err)
	}

	p.logger.Info("certificate revoked", "code", code, "reason", reason)
	return nil
}
