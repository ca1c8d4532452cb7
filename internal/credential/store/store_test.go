package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustledger/internal/credential/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

type CredentialStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	terms models.Terms
}

func (s *CredentialStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.terms = models.Terms{Holder: "0xholder", ContentRef: "QmTestCid", Schema: "ProofSingle"}
}

func TestCredentialStoreSuite(t *testing.T) {
	suite.Run(t, new(CredentialStoreSuite))
}

func (s *CredentialStoreSuite) nextID() id.CredentialID {
	next, err := s.store.NextID(s.ctx)
	s.Require().NoError(err)
	return next
}

func (s *CredentialStoreSuite) TestIDAllocation() {
	s.Equal(id.CredentialID(1), s.nextID())

	c, err := models.NewCredential(s.nextID(), s.terms, "0xissuer", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateCredential(s.ctx, c))

	p, err := models.NewPendingCredential(s.nextID(), s.terms, "0xissuer", 2, time.Now())
	s.Require().NoError(err)
	s.Equal(id.CredentialID(2), p.ID)
	s.Require().NoError(s.store.CreatePending(s.ctx, p))

	s.Equal(id.CredentialID(3), s.nextID())

	s.Run("rejects out of order ids", func() {
		stale, err := models.NewCredential(2, s.terms, "0xissuer", time.Now())
		s.Require().NoError(err)
		err = s.store.CreateCredential(s.ctx, stale)
		s.ErrorIs(err, sentinel.ErrInvalidState)
		s.Equal(id.CredentialID(3), s.nextID())
	})
}

func (s *CredentialStoreSuite) TestPendingLifecycle() {
	p, err := models.NewPendingCredential(s.nextID(), s.terms, "0xi1", 2, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreatePending(s.ctx, p))

	found, err := s.store.FindPending(s.ctx, p.ID)
	s.Require().NoError(err)
	found.ApplyApproval("0xi2")

	again, err := s.store.FindPending(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(again.Approvers, 1, "callers must not mutate stored state through returned values")

	s.Require().NoError(s.store.UpdatePending(s.ctx, found))
	count, err := s.store.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	s.Require().NoError(s.store.Finalize(s.ctx, found.Finalize("0xi2", time.Now())))

	_, err = s.store.FindPending(s.ctx, p.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	c, err := s.store.FindCredential(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(id.Address("0xi2"), c.Issuer)

	err = s.store.Finalize(s.ctx, c)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CredentialStoreSuite) TestExecuteCredential() {
	c, err := models.NewCredential(s.nextID(), s.terms, "0xissuer", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateCredential(s.ctx, c))

	s.Run("mutates after validation", func() {
		got, err := s.store.ExecuteCredential(s.ctx, c.ID,
			func(c *models.Credential) error { return c.CanRevoke() },
			func(c *models.Credential) { c.ApplyRevocation("fraud", time.Now()) },
		)
		s.Require().NoError(err)
		s.True(got.Revoked)
	})

	s.Run("validation failure leaves record untouched", func() {
		_, err := s.store.ExecuteCredential(s.ctx, c.ID,
			func(c *models.Credential) error { return c.CanRevoke() },
			func(c *models.Credential) { c.ApplyRevocation("other", time.Now()) },
		)
		s.Require().Error(err)

		got, err := s.store.FindCredential(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("fraud", got.RevokeReason)
	})

	s.Run("unknown id", func() {
		_, err := s.store.ExecuteCredential(s.ctx, 99,
			func(*models.Credential) error { return nil },
			func(*models.Credential) {},
		)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}
