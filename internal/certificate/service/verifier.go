package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"weekchain/internal/certificate"
	"weekchain/internal/certificate/cache"
	certmetrics "weekchain/internal/certificate/metrics"
	dErrors "weekchain/pkg/domain-errors"
	"weekchain/pkg/platform/sentinel"
)

// Verifier answers public verification queries. It never mutates state and
// never exposes why a lookup failed beyond the four verdicts: unknown codes
// and unknown hashes both collapse to not_found.
type Verifier struct {
	store   certificate.Store
	cache   cache.Cache
	logger  *slog.Logger
	metrics *certmetrics.Metrics
	tracer  trace.Tracer
}

func NewVerifier(store certificate.Store, c cache.Cache, logger *slog.Logger, metrics *certmetrics.Metrics) *Verifier {
	if c == nil {
		c = cache.Noop{}
	}
	return &Verifier{
		store:   store,
		cache:   c,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("weekchain/certificate"),
	}
}

// Verify resolves a certificate code or integrity hash to a verdict. The
// integrity hash is recomputed from the stored fields on every call, cached
// record included, so a poisoned or stale cache entry can never upgrade a
// tampered record to valid.
func (v *Verifier) Verify(ctx context.Context, query string) (*certificate.VerificationResult, error) {
	ctx, span := v.tracer.Start(ctx, "certificate.verify")
	defer span.End()
	start := time.Now()
	defer v.metrics.ObserveVerify(start)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "verification query must not be empty")
	}

	cert, err := v.lookup(ctx, query)
	if errors.Is(err, sentinel.ErrNotFound) {
		span.SetAttributes(attribute.String("verdict", string(certificate.VerdictNotFound)))
		v.metrics.IncrementVerification(string(certificate.VerdictNotFound))
		return &certificate.VerificationResult{Verdict: certificate.VerdictNotFound}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "certificate lookup failed")
	}

	verdict := certificate.VerdictValid
	switch {
	case !certificate.HashMatches(cert):
		// The stored fields no longer produce the stored hash. Log the code
		// only; the mismatching fields stay out of the public response.
		v.logger.Warn("certificate integrity mismatch", "code", cert.Code)
		verdict = certificate.VerdictTampered
	case cert.Revoked:
		verdict = certificate.VerdictRevoked
	}

	span.SetAttributes(attribute.String("verdict", string(verdict)))
	v.metrics.IncrementVerification(string(verdict))

	if verdict == certificate.VerdictTampered {
		return &certificate.VerificationResult{Verdict: verdict}, nil
	}
	issuedAt := cert.IssuedAt
	return &certificate.VerificationResult{
		Verdict:     verdict,
		PropertyRef: cert.PropertyRef,
		UnitCount:   cert.UnitCount,
		IssuedAt:    &issuedAt,
		Revoked:     cert.Revoked,
	}, nil
}

// lookup dispatches on query shape. Hash lookups bypass the cache (the cache
// is keyed by code); code lookups read through it, treating cache errors as
// misses so verification survives a cache outage.
func (v *Verifier) lookup(ctx context.Context, query string) (*certificate.Certificate, error) {
	if certificate.IsHashInput(query) {
		return v.store.FindByHash(ctx, query)
	}

	if cached, ok, err := v.cache.Get(ctx, query); err != nil {
		v.logger.Warn("certificate cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	cert, err := v.store.FindByCode(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := v.cache.Set(ctx, cert); err != nil {
		v.logger.Warn("certificate cache write failed", "error", err)
	}
	return cert, nil
}
