package confirm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"weekchain/internal/broker"
	"weekchain/internal/certificate"
	certservice "weekchain/internal/certificate/service"
	"weekchain/internal/commission"
	confirmmetrics "weekchain/internal/confirm/metrics"
	"weekchain/internal/outbox"
	"weekchain/internal/sale"
	"weekchain/internal/tier"
	"weekchain/pkg/domain"
	dErrors "weekchain/pkg/domain-errors"
	"weekchain/pkg/platform/sentinel"
)

// maxAttempts bounds retries of the confirmation unit after transient store
// failures (connection loss, serialization aborts). The unit is idempotent
// per sale id, so a retry that races a succeeded-but-unreported attempt
// resolves as a replay.
const maxAttempts = 3

const retryBackoff = 50 * time.Millisecond

// Input is one settled sale handed over for confirmation. BrokerID is nil for
// direct sales, which still mint a certificate but earn no commission.
type Input struct {
	SaleID      domain.SaleID
	BrokerID    *domain.BrokerID
	GrossAmount decimal.Decimal
	UnitCount   int
	PropertyRef string
	BuyerRef    string
	Season      string
}

// Result is the complete outcome of a confirmation: the confirmed sale, the
// commission owed (nil for direct sales), the minted certificate and the
// broker's unit total after this sale. Replayed confirmations return the
// originally computed values unchanged.
type Result struct {
	Sale        *sale.Sale
	Commission  *commission.Record
	Certificate *certificate.Certificate
	UnitsAfter  int
	Replayed    bool
}

// Service orchestrates sale confirmation. All four effects of a confirmation
// commit or roll back together through the Runner; partial confirmations are
// never observable.
type Service struct {
	runner      Runner
	sales       sale.Store
	brokers     broker.Store
	commissions commission.Store
	certs       certificate.Store
	minter      *certservice.Minter
	outbox      outbox.Store
	table       *tier.Table
	logger      *slog.Logger
	metrics     *confirmmetrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

func New(
	runner Runner,
	sales sale.Store,
	brokers broker.Store,
	commissions commission.Store,
	certs certificate.Store,
	minter *certservice.Minter,
	ob outbox.Store,
	table *tier.Table,
	logger *slog.Logger,
	metrics *confirmmetrics.Metrics,
) *Service {
	return &Service{
		runner:      runner,
		sales:       sales,
		brokers:     brokers,
		commissions: commissions,
		certs:       certs,
		minter:      minter,
		outbox:      ob,
		table:       table,
		logger:      logger,
		metrics:     metrics,
		tracer:      otel.Tracer("weekchain/confirm"),
		now:         time.Now,
	}
}

// ConfirmSale confirms a settled sale exactly once. A replay with an already
// confirmed sale id returns the original result without touching any ledger;
// a sale id that was cancelled can never be confirmed.
func (s *Service) ConfirmSale(ctx context.Context, in Input) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "confirm.sale")
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveConfirm(start)

	now := s.now()
	sl, err := sale.New(in.SaleID, in.BrokerID, in.GrossAmount, in.UnitCount, in.PropertyRef, in.BuyerRef, in.Season, now)
	if err != nil {
		s.metrics.IncrementConfirmation(confirmmetrics.OutcomeRejected)
		return nil, err
	}
	span.SetAttributes(attribute.String("sale_id", in.SaleID.String()))

	// Fast path: a confirmed sale replays without taking the broker lock.
	if existing, err := s.sales.FindByID(ctx, in.SaleID); err == nil {
		res, err := s.resolveExisting(ctx, existing)
		if err == nil && res != nil {
			s.metrics.IncrementConfirmation(confirmmetrics.OutcomeReplayed)
			return res, nil
		}
		if err != nil {
			return nil, err
		}
	}

	var (
		result  *Result
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, lastErr = s.confirmOnce(ctx, sl)
		if lastErr == nil || !dErrors.HasCode(lastErr, dErrors.CodeUnavailable) {
			break
		}
		s.metrics.IncrementRetries()
		s.logger.Warn("confirmation unit failed, retrying",
			"sale_id", in.SaleID.String(), "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "confirmation aborted: context cancelled")
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	if lastErr != nil {
		s.metrics.IncrementConfirmation(confirmmetrics.OutcomeRejected)
		return nil, lastErr
	}

	if result.Replayed {
		s.metrics.IncrementConfirmation(confirmmetrics.OutcomeReplayed)
		return result, nil
	}

	s.metrics.IncrementConfirmation(confirmmetrics.OutcomeConfirmed)
	s.logger.Info("sale confirmed",
		"sale_id", result.Sale.ID.String(),
		"certificate", result.Certificate.Code,
		"units", result.Sale.UnitCount,
	)
	return result, nil
}

// confirmOnce runs one attempt of the confirmation unit under the per-broker
// lock. Non-brokered sales serialize on the sale id instead, which still
// dedupes concurrent replays of the same sale.
func (s *Service) confirmOnce(ctx context.Context, sl *sale.Sale) (*Result, error) {
	key := sl.ID.String()
	if sl.BrokerID != nil {
		key = sl.BrokerID.String()
	}

	var result *Result
	err := s.runner.RunInTx(ctx, key, func(ctx context.Context) error {
		target := sl
		if err := s.sales.Create(ctx, sl); err != nil {
			if !errors.Is(err, sentinel.ErrDuplicate) {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to append sale")
			}
			// Lost the race to another confirmation of the same sale, or the
			// sale was recorded pending earlier.
			existing, ferr := s.sales.FindByID(ctx, sl.ID)
			if ferr != nil {
				return dErrors.Wrap(ferr, dErrors.CodeUnavailable, "failed to load existing sale")
			}
			res, rerr := s.resolveExisting(ctx, existing)
			if rerr != nil {
				return rerr
			}
			if res != nil {
				result = res
				return nil
			}
			target = existing
		}

		res, err := s.applyConfirmation(ctx, target)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyConfirmation performs the four effects on a pending sale. Runs under
// the per-broker lock held by confirmOnce.
func (s *Service) applyConfirmation(ctx context.Context, sl *sale.Sale) (*Result, error) {
	now := s.now()

	from := sl.Status
	if err := sl.Confirm(now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "sale cannot be confirmed")
	}
	if err := s.sales.UpdateStatus(ctx, sl, from); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			// The status moved under us despite the lock: a cancellation or
			// another confirmation committed first. Resolve against the row.
			existing, ferr := s.sales.FindByID(ctx, sl.ID)
			if ferr != nil {
				return nil, dErrors.Wrap(ferr, dErrors.CodeUnavailable, "failed to reload sale")
			}
			res, rerr := s.resolveExisting(ctx, existing)
			if rerr != nil {
				return nil, rerr
			}
			if res != nil {
				return res, nil
			}
			return nil, dErrors.New(dErrors.CodeConflict, "sale status changed concurrently")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist confirmation")
	}

	res := &Result{Sale: sl}

	if sl.BrokerID != nil {
		unitsBefore, unitsAfter, err := s.brokers.IncrementUnits(ctx, *sl.BrokerID, sl.UnitCount)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to credit broker units")
		}
		rec := commission.Compute(s.table, sl, unitsBefore, now)
		if err := s.commissions.Create(ctx, &rec); err != nil && !errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record commission")
		}
		res.Commission = &rec
		res.UnitsAfter = unitsAfter
	}

	cert, err := s.minter.Mint(ctx, sl, now)
	if err != nil {
		return nil, err
	}
	res.Certificate = cert

	if err := s.appendConfirmationEvents(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// resolveExisting maps an already-stored sale to a replay result. Returns
// (nil, nil) for pending sales, which the caller confirms as usual.
func (s *Service) resolveExisting(ctx context.Context, existing *sale.Sale) (*Result, error) {
	switch existing.Status {
	case sale.StatusCancelled:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "sale was cancelled and cannot be confirmed")
	case sale.StatusPending:
		return nil, nil
	}

	res := &Result{Sale: existing, Replayed: true}

	cert, err := s.certs.FindBySaleID(ctx, existing.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load certificate for replay")
	}
	res.Certificate = cert

	if existing.BrokerID != nil {
		rec, err := s.commissions.FindBySaleID(ctx, existing.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load commission for replay")
		}
		res.Commission = rec
		res.UnitsAfter = rec.UnitsBefore + existing.UnitCount
	}
	return res, nil
}

func (s *Service) appendConfirmationEvents(ctx context.Context, res *Result) error {
	fields := map[string]any{
		"sale_id":      res.Sale.ID.String(),
		"unit_count":   res.Sale.UnitCount,
		"property_ref": res.Sale.PropertyRef,
		"season":       res.Sale.Season,
	}
	if res.Commission != nil {
		fields["broker_id"] = res.Commission.BrokerID.String()
		fields["tier"] = string(res.Commission.TierAtTime)
		fields["amount_owed"] = res.Commission.AmountOwed.StringFixed(2)
	}
	saleEvent, err := outbox.NewEntry(outbox.TopicSales, res.Sale.ID.String(), outbox.EventSaleConfirmed, fields)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build confirmation event")
	}
	if err := s.outbox.Append(ctx, saleEvent); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to append confirmation event")
	}

	certEvent, err := outbox.NewEntry(outbox.TopicCertificates, res.Certificate.Code, outbox.EventCertificateIssued, map[string]any{
		"code":    res.Certificate.Code,
		"sale_id": res.Sale.ID.String(),
		"hash":    res.Certificate.IntegrityHash,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build issuance event")
	}
	if err := s.outbox.Append(ctx, certEvent); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to append issuance event")
	}
	return nil
}

// CancelSale cancels a pending sale before confirmation, excluding it from
// every ledger. Confirmed sales cannot be cancelled; corrections go through
// certificate revocation and administrative unit adjustments instead.
func (s *Service) CancelSale(ctx context.Context, id domain.SaleID) error {
	if id.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "sale id is required")
	}

	// Cancellation takes the same per-key lock as confirmation, so it can
	// never interleave with the four-effect unit of the same sale.
	sl, err := s.sales.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "sale not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load sale")
	}

	key := sl.ID.String()
	if sl.BrokerID != nil {
		key = sl.BrokerID.String()
	}

	err = s.runner.RunInTx(ctx, key, func(ctx context.Context) error {
		return s.cancelOnce(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("sale cancelled", "sale_id", id.String())
	return nil
}

func (s *Service) cancelOnce(ctx context.Context, id domain.SaleID) error {
	sl, err := s.sales.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "sale not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load sale")
	}

	if err := sl.Cancel(); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "confirmed sale cannot be cancelled")
	}
	if err := s.sales.UpdateStatus(ctx, sl, sale.StatusPending); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			// Lost the race: the sale moved on while this cancel queued.
			// A concurrent cancel is a no-op; a confirmation wins outright.
			current, ferr := s.sales.FindByID(ctx, id)
			if ferr != nil {
				return dErrors.Wrap(ferr, dErrors.CodeUnavailable, "failed to reload sale")
			}
			if current.Status == sale.StatusCancelled {
				return nil
			}
			return dErrors.New(dErrors.CodeInvariantViolation, "confirmed sale cannot be cancelled")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist cancellation")
	}
	return nil
}

// RecordPending appends a sale without confirming it, for flows that settle
// payment later. The pending row carries the full sale attributes so a later
// ConfirmSale or CancelSale needs only the id.
func (s *Service) RecordPending(ctx context.Context, in Input) (*sale.Sale, error) {
	sl, err := sale.New(in.SaleID, in.BrokerID, in.GrossAmount, in.UnitCount, in.PropertyRef, in.BuyerRef, in.Season, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.sales.Create(ctx, sl); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeConflict, "sale already recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to append sale")
	}
	return sl, nil
}
