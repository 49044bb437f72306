package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"weekchain/internal/certificate"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
)

type CertStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *CertStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestCertStoreSuite(t *testing.T) {
	suite.Run(t, new(CertStoreSuite))
}

func (s *CertStoreSuite) newCert(code string, issuedAt time.Time) *certificate.Certificate {
	c := &certificate.Certificate{
		Code:        code,
		SaleID:      domain.SaleID(uuid.New()),
		BuyerRef:    "buyer-4711",
		PropertyRef: "villa-mar-12",
		UnitCount:   2,
		IssuedAt:    issuedAt,
	}
	c.IntegrityHash = certificate.ComputeIntegrityHash(c)
	return c
}

func (s *CertStoreSuite) TestCreateAndLookups() {
	s.Run("creates and finds by code, hash and sale id", func() {
		c := s.newCert("WC-AAAA-BBBB", time.Now())
		s.Require().NoError(s.store.Create(s.ctx, c))

		byCode, err := s.store.FindByCode(s.ctx, c.Code)
		s.Require().NoError(err)
		s.Equal(c.SaleID, byCode.SaleID)

		byHash, err := s.store.FindByHash(s.ctx, c.IntegrityHash)
		s.Require().NoError(err)
		s.Equal(c.Code, byHash.Code)

		bySale, err := s.store.FindBySaleID(s.ctx, c.SaleID)
		s.Require().NoError(err)
		s.Equal(c.Code, bySale.Code)
	})

	s.Run("unknown lookups return ErrNotFound", func() {
		_, err := s.store.FindByCode(s.ctx, "WC-ZZZZ-ZZZZ")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByHash(s.ctx, certificate.HashPrefix+"deadbeef")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindBySaleID(s.ctx, domain.SaleID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CertStoreSuite) TestUniquenessConstraints() {
	s.Run("second certificate for the same sale is a duplicate", func() {
		c := s.newCert("WC-AAAA-CCCC", time.Now())
		s.Require().NoError(s.store.Create(s.ctx, c))

		again := *c
		again.Code = "WC-DDDD-EEEE"
		s.Require().ErrorIs(s.store.Create(s.ctx, &again), sentinel.ErrDuplicate)
	})

	s.Run("code collision across different sales is a conflict", func() {
		c1 := s.newCert("WC-FFFF-GGGG", time.Now())
		s.Require().NoError(s.store.Create(s.ctx, c1))

		c2 := s.newCert("WC-FFFF-GGGG", time.Now())
		s.Require().ErrorIs(s.store.Create(s.ctx, c2), sentinel.ErrConflict)
	})
}

func (s *CertStoreSuite) TestSetRevoked() {
	c := s.newCert("WC-HHHH-JJJJ", time.Now())
	s.Require().NoError(s.store.Create(s.ctx, c))

	s.Require().NoError(s.store.SetRevoked(s.ctx, c.Code, true))
	found, err := s.store.FindByCode(s.ctx, c.Code)
	s.Require().NoError(err)
	s.True(found.Revoked)

	// Revocation never deletes: the row and its hash remain for audit.
	s.Equal(c.IntegrityHash, found.IntegrityHash)

	s.Require().ErrorIs(s.store.SetRevoked(s.ctx, "WC-ZZZZ-ZZZZ", true), sentinel.ErrNotFound)
}

func (s *CertStoreSuite) TestListRecent() {
	base := time.Now()
	oldest := s.newCert("WC-KKKK-AAAA", base.Add(-3*time.Hour))
	middle := s.newCert("WC-KKKK-BBBB", base.Add(-2*time.Hour))
	newest := s.newCert("WC-KKKK-CCCC", base.Add(-1*time.Hour))
	for _, c := range []*certificate.Certificate{oldest, middle, newest} {
		s.Require().NoError(s.store.Create(s.ctx, c))
	}

	recent, err := s.store.ListRecent(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(newest.Code, recent[0].Code)
	s.Equal(middle.Code, recent[1].Code)
}
