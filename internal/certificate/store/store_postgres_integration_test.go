//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"weekchain/internal/certificate"
	"weekchain/internal/certificate/store"
	"weekchain/internal/sale"
	salestore "weekchain/internal/sale/store"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
	txcontext "weekchain/pkg/platform/tx"
	"weekchain/pkg/testutil/containers"
)

type PostgresCertSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	sales    *salestore.Postgres
}

func TestPostgresCertSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresCertSuite))
}

func (s *PostgresCertSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.sales = salestore.NewPostgres(s.postgres.DB)
}

func (s *PostgresCertSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "certificates", "sales"))
}

// newCert appends a backing sale first; certificates reference their sale row.
func (s *PostgresCertSuite) newCert(code string) *certificate.Certificate {
	sl, err := sale.New(
		domain.SaleID(uuid.New()), nil,
		decimal.RequireFromString("900.00"), 2,
		"RES-PIER-3", "buyer-12", "", time.Now(),
	)
	s.Require().NoError(err)
	s.Require().NoError(s.sales.Create(context.Background(), sl))

	c := &certificate.Certificate{
		Code:        code,
		SaleID:      sl.ID,
		BuyerRef:    sl.BuyerRef,
		PropertyRef: sl.PropertyRef,
		UnitCount:   sl.UnitCount,
		IssuedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	c.IntegrityHash = certificate.ComputeIntegrityHash(c)
	return c
}

func (s *PostgresCertSuite) TestRoundTrip() {
	ctx := context.Background()
	c := s.newCert("WC-ABCD-2345")
	s.Require().NoError(s.store.Create(ctx, c))

	byCode, err := s.store.FindByCode(ctx, c.Code)
	s.Require().NoError(err)
	s.Equal(c.IntegrityHash, byCode.IntegrityHash)
	s.True(c.IssuedAt.Equal(byCode.IssuedAt))
	s.True(certificate.HashMatches(byCode))

	byHash, err := s.store.FindByHash(ctx, c.IntegrityHash)
	s.Require().NoError(err)
	s.Equal(c.Code, byHash.Code)

	bySale, err := s.store.FindBySaleID(ctx, c.SaleID)
	s.Require().NoError(err)
	s.Equal(c.Code, bySale.Code)
}

// TestUniquenessKinds pins the two distinct violation signals: a second
// certificate for the same sale is an idempotent replay, a colliding code for
// a different sale is a collision the minter retries.
func (s *PostgresCertSuite) TestUniquenessKinds() {
	ctx := context.Background()
	c := s.newCert("WC-ABCD-2345")
	s.Require().NoError(s.store.Create(ctx, c))

	sameSale := s.newCert("WC-WXYZ-7890")
	sameSale.SaleID = c.SaleID
	sameSale.IntegrityHash = certificate.ComputeIntegrityHash(sameSale)
	s.Require().True(errors.Is(s.store.Create(ctx, sameSale), sentinel.ErrDuplicate))

	sameCode := s.newCert(c.Code)
	s.Require().True(errors.Is(s.store.Create(ctx, sameCode), sentinel.ErrConflict))
}

// A colliding insert inside a transaction must not poison it: the mint loop
// retries with a fresh code on the same transaction.
func (s *PostgresCertSuite) TestCreateConflictKeepsTransactionAlive() {
	ctx := context.Background()
	c := s.newCert("WC-ABCD-2345")
	s.Require().NoError(s.store.Create(ctx, c))

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	defer tx.Rollback()
	txCtx := txcontext.WithTx(ctx, tx)

	sameCode := s.newCert(c.Code)
	s.Require().True(errors.Is(s.store.Create(txCtx, sameCode), sentinel.ErrConflict))

	retry := *sameCode
	retry.Code = "WC-QQQQ-5555"
	retry.IntegrityHash = certificate.ComputeIntegrityHash(&retry)
	s.Require().NoError(s.store.Create(txCtx, &retry))
	s.Require().NoError(tx.Commit())

	stored, err := s.store.FindByCode(ctx, retry.Code)
	s.Require().NoError(err)
	s.Equal(sameCode.SaleID, stored.SaleID)
}

func (s *PostgresCertSuite) TestSetRevokedPreservesRow() {
	ctx := context.Background()
	c := s.newCert("WC-ABCD-2345")
	s.Require().NoError(s.store.Create(ctx, c))

	s.Require().NoError(s.store.SetRevoked(ctx, c.Code, true))
	stored, err := s.store.FindByCode(ctx, c.Code)
	s.Require().NoError(err)
	s.True(stored.Revoked)
	s.Equal(c.IntegrityHash, stored.IntegrityHash)

	err = s.store.SetRevoked(ctx, "WC-NONE-NONE", true)
	s.Require().True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresCertSuite) TestListRecentOrder() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	codes := []string{"WC-AAAA-2222", "WC-BBBB-3333", "WC-CCCC-4444"}
	for i, code := range codes {
		c := s.newCert(code)
		c.IssuedAt = base.Add(time.Duration(i) * time.Minute)
		c.IntegrityHash = certificate.ComputeIntegrityHash(c)
		s.Require().NoError(s.store.Create(ctx, c))
	}

	recent, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("WC-CCCC-4444", recent[0].Code)
	s.Equal("WC-BBBB-3333", recent[1].Code)
}
