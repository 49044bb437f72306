package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"weekchain/internal/broker"
	brokermetrics "weekchain/internal/broker/metrics"
	"weekchain/internal/outbox"
	"weekchain/internal/tier"
	"weekchain/pkg/domain"
	dErrors "weekchain/pkg/domain-errors"
	"weekchain/pkg/platform/sentinel"
)

// Service answers broker-facing standing queries and carries the two
// administrative lifecycle operations. Standing is always derived from the
// ledger counter; there is no stored tier to drift.
type Service struct {
	store   broker.Store
	table   *tier.Table
	outbox  outbox.Store
	logger  *slog.Logger
	metrics *brokermetrics.Metrics
}

func New(store broker.Store, table *tier.Table, ob outbox.Store, logger *slog.Logger, metrics *brokermetrics.Metrics) *Service {
	return &Service{store: store, table: table, outbox: ob, logger: logger, metrics: metrics}
}

// GetStanding returns the broker's current tier, cumulative units and the
// rate a subsequent sale would be commissioned at. Read-only, no side effects.
func (s *Service) GetStanding(ctx context.Context, id domain.BrokerID) (*broker.Standing, error) {
	start := time.Now()
	defer s.metrics.ObserveStanding(start)

	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "broker has no confirmed referred sales")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load broker")
	}

	t := s.table.Resolve(b.CumulativeUnits)
	return &broker.Standing{
		BrokerID:        b.ID,
		TierName:        t.Name,
		CumulativeUnits: b.CumulativeUnits,
		CommissionRate:  t.CommissionRate,
		BonusUnits:      t.BonusUnits,
		Active:          b.Active,
	}, nil
}

// Correct applies an explicit administrative unit correction. This is the only
// path on which a broker's cumulative units may decrease.
func (s *Service) Correct(ctx context.Context, id domain.BrokerID, delta int) (*broker.Standing, error) {
	if delta == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "correction delta must not be zero")
	}
	unitsAfter, err := s.store.AdjustUnits(ctx, id, delta)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "broker not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "correction would make cumulative units negative")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply correction")
		}
	}
	s.metrics.IncrementUnitCorrections()

	entry, err := outbox.NewEntry(outbox.TopicBrokers, id.String(), outbox.EventBrokerCorrected, map[string]any{
		"broker_id":   id.String(),
		"delta":       delta,
		"units_after": unitsAfter,
	})
	if err != nil {
		s.logger.Error("failed to build correction event", "broker_id", id.String(), "error", err)
	} else if err := s.outbox.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append correction event", "broker_id", id.String(), "error", err)
	}

	return s.GetStanding(ctx, id)
}

// Deactivate flips the broker to inactive. History is preserved; the broker
// keeps appearing in ledgers but accrues no new standing on dashboards.
func (s *Service) Deactivate(ctx context.Context, id domain.BrokerID) error {
	if err := s.store.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "broker not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate broker")
	}
	return nil
}
