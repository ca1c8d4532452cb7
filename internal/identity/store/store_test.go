package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustledger/internal/identity/models"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/sentinel"
)

type UserStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *UserStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestUserStoreSuite(t *testing.T) {
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) newUser(owner, externalID string) *models.User {
	u, err := models.NewUser(id.Address("0x"+owner), externalID, time.Now())
	s.Require().NoError(err)
	return u
}

func (s *UserStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds by owner", func() {
		u := s.newUser("alice", "did:example:alice")
		s.Require().NoError(s.store.Create(s.ctx, u))

		found, err := s.store.FindByOwner(s.ctx, u.Owner)
		s.Require().NoError(err)
		s.Equal("did:example:alice", found.ExternalID)
		s.False(found.Verified)

		inUse, err := s.store.ExternalIDInUse(s.ctx, "did:example:alice")
		s.Require().NoError(err)
		s.True(inUse)
	})

	s.Run("returns ErrNotFound for unknown owner", func() {
		_, err := s.store.FindByOwner(s.ctx, "0xnobody")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		u := s.newUser("carol", "did:example:carol")
		s.Require().NoError(s.store.Create(s.ctx, u))

		found, err := s.store.FindByOwner(s.ctx, u.Owner)
		s.Require().NoError(err)
		found.Verified = true

		again, err := s.store.FindByOwner(s.ctx, u.Owner)
		s.Require().NoError(err)
		s.False(again.Verified)
	})
}

func (s *UserStoreSuite) TestUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("alice", "did:1")))

	s.Run("rejects taken external id", func() {
		err := s.store.Create(s.ctx, s.newUser("bob", "did:1"))
		s.ErrorIs(err, ErrExternalIDTaken)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects second record for owner", func() {
		err := s.store.Create(s.ctx, s.newUser("alice", "did:2"))
		s.ErrorIs(err, ErrOwnerTaken)
		s.True(errors.Is(err, sentinel.ErrAlreadyUsed))

		inUse, err := s.store.ExternalIDInUse(s.ctx, "did:2")
		s.Require().NoError(err)
		s.False(inUse)
	})

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *UserStoreSuite) TestExecute() {
	u := s.newUser("alice", "did:1")
	s.Require().NoError(s.store.Create(s.ctx, u))
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	s.Run("applies mutation when validation passes", func() {
		got, err := s.store.Execute(s.ctx, u.Owner,
			func(*models.User) error { return nil },
			func(u *models.User) { u.ApplyVerification(now) },
		)
		s.Require().NoError(err)
		s.True(got.Verified)
		s.Equal(now, *got.VerifiedAt)
	})

	s.Run("skips mutation when validation fails", func() {
		boom := errors.New("boom")
		called := false
		_, err := s.store.Execute(s.ctx, u.Owner,
			func(*models.User) error { return boom },
			func(*models.User) { called = true },
		)
		s.ErrorIs(err, boom)
		s.False(called)
	})

	s.Run("returns ErrNotFound for unknown owner", func() {
		_, err := s.store.Execute(s.ctx, "0xnobody",
			func(*models.User) error { return nil },
			func(*models.User) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
