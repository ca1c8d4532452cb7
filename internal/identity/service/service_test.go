package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"trustledger/internal/access"
	"trustledger/internal/events"
	identitymetrics "trustledger/internal/identity/metrics"
	"trustledger/internal/identity/store"
	platformmetrics "trustledger/internal/platform/metrics"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/requestcontext"
)

const (
	admin id.Address = "0xadmin"
	alice id.Address = "0xalice"
	bob   id.Address = "0xbob"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	log     *events.Log
	metrics *identitymetrics.Metrics
	ops     *platformmetrics.Metrics
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.log = events.NewLog()

	ctrl, err := access.New(access.Roles{Administrator: admin})
	s.Require().NoError(err)

	reg := prometheus.NewRegistry()
	s.metrics = identitymetrics.New(reg)
	s.ops = platformmetrics.New(reg)
	s.svc = New(store.NewInMemory(), ctrl, s.log,
		WithMetrics(s.metrics),
		WithOperationMetrics(s.ops),
	)
}

func (s *ServiceSuite) records() []events.Record {
	return s.log.Since(0, 0)
}

func (s *ServiceSuite) TestRegister() {
	s.Run("creates unverified record and emits UserRegistered", func() {
		u, err := s.svc.Register(s.ctx, alice, "did:example:alice")
		s.Require().NoError(err)
		s.Equal(alice, u.Owner)
		s.False(u.Verified)
		s.Equal(s.now, u.RegisteredAt)

		recs := s.records()
		s.Require().Len(recs, 1)
		s.Equal(events.KindUserRegistered, recs[0].Kind)
		s.JSONEq(`{"caller":"0xalice","externalId":"did:example:alice"}`, string(recs[0].Payload))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.UsersRegistered))
	})

	s.Run("rejects external id held by another user", func() {
		_, err := s.svc.Register(s.ctx, bob, "did:example:alice")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("DID already registered", dErrors.MessageOf(err))
		s.Len(s.records(), 1)

		_, err = s.svc.User(s.ctx, bob)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects a second registration by the same owner", func() {
		_, err := s.svc.Register(s.ctx, alice, "did:example:other")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("address already registered", dErrors.MessageOf(err))
		s.Len(s.records(), 1)

		u, err := s.svc.User(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("did:example:alice", u.ExternalID)
	})

	s.Run("rejects empty external id", func() {
		_, err := s.svc.Register(s.ctx, bob, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects missing caller", func() {
		_, err := s.svc.Register(s.ctx, "", "did:example:nobody")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("external id is kept exactly as submitted", func() {
		u, err := s.svc.Register(s.ctx, bob, "did:example:alice ")
		s.Require().NoError(err)
		s.Equal("did:example:alice ", u.ExternalID)

		recs := s.records()
		s.Require().Len(recs, 2)
		s.JSONEq(`{"caller":"0xbob","externalId":"did:example:alice "}`, string(recs[1].Payload))
	})

	s.Equal(2.0, testutil.ToFloat64(s.ops.Operations.WithLabelValues("identity", "register", "ok")))
	s.Equal(2.0, testutil.ToFloat64(s.ops.Operations.WithLabelValues("identity", "register", "conflict")))
}

func (s *ServiceSuite) TestVerifyUser() {
	_, err := s.svc.Register(s.ctx, alice, "did:example:alice")
	s.Require().NoError(err)

	s.Run("non-admin is rejected", func() {
		_, err := s.svc.VerifyUser(s.ctx, bob, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("Not an admin", dErrors.MessageOf(err))
		s.Len(s.records(), 1)
	})

	s.Run("unknown target is not found", func() {
		_, err := s.svc.VerifyUser(s.ctx, admin, bob)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Len(s.records(), 1)
	})

	s.Run("admin verifies and UserVerified is emitted", func() {
		u, err := s.svc.VerifyUser(s.ctx, admin, alice)
		s.Require().NoError(err)
		s.True(u.Verified)
		s.Require().NotNil(u.VerifiedAt)

		recs := s.records()
		s.Require().Len(recs, 2)
		s.Equal(events.KindUserVerified, recs[1].Kind)
		s.JSONEq(`{"target":"0xalice"}`, string(recs[1].Payload))
	})

	s.Run("verifying twice succeeds without a second record", func() {
		u, err := s.svc.VerifyUser(s.ctx, admin, alice)
		s.Require().NoError(err)
		s.True(u.Verified)
		s.Len(s.records(), 2)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.UsersVerified))
	})
}

func (s *ServiceSuite) TestRestrictedAction() {
	_, err := s.svc.Register(s.ctx, alice, "did:example:alice")
	s.Require().NoError(err)

	s.Run("unregistered caller is rejected", func() {
		err := s.svc.RestrictedAction(s.ctx, bob)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("User not verified", dErrors.MessageOf(err))
	})

	s.Run("registered but unverified caller is rejected", func() {
		err := s.svc.RestrictedAction(s.ctx, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("verified caller succeeds without emitting", func() {
		_, err := s.svc.VerifyUser(s.ctx, admin, alice)
		s.Require().NoError(err)
		before := s.log.Head()

		s.Require().NoError(s.svc.RestrictedAction(s.ctx, alice))
		s.Equal(before, s.log.Head())

		verified, err := s.svc.IsVerified(s.ctx, alice)
		s.Require().NoError(err)
		s.True(verified)
	})

	s.Run("is verified is false for unknown owner", func() {
		verified, err := s.svc.IsVerified(s.ctx, bob)
		s.Require().NoError(err)
		s.False(verified)
	})
}

func (s *ServiceSuite) TestCancelledContextChangesNothing() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.svc.Register(ctx, alice, "did:example:alice")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.Empty(s.records())

	_, err = s.svc.User(s.ctx, alice)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestConcurrentRegisterSameExternalID() {
	const callers = 40
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := id.Address("0xcaller" + string(rune('a'+i%26)) + string(rune('a'+i/26)))
			_, err := s.svc.Register(s.ctx, caller, "did:example:shared")
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(callers-1), conflicts.Load())
	s.Len(s.records(), 1)
	s.Require().NoError(s.log.Verify())
}
