package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

const (
	admin  id.Address = "0xadmin"
	issuer id.Address = "0xissuer"
	alice  id.Address = "0xalice"
)

type ControllerSuite struct {
	suite.Suite
	ctrl *Controller
	ctx  context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	ctrl, err := New(Roles{Administrator: admin, Issuers: []id.Address{issuer}})
	s.Require().NoError(err)
	s.ctrl = ctrl
	s.ctx = context.Background()
}

func (s *ControllerSuite) TestRequireAdmin() {
	s.NoError(s.ctrl.RequireAdmin(admin))

	for _, caller := range []id.Address{issuer, alice, ""} {
		err := s.ctrl.RequireAdmin(caller)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(ReasonNotAdmin, dErrors.MessageOf(err))
	}
}

func (s *ControllerSuite) TestRequireIssuer() {
	s.Run("administrator is implicitly an issuer", func() {
		s.NoError(s.ctrl.RequireIssuer(admin))
	})

	s.Run("configured issuer passes", func() {
		s.NoError(s.ctrl.RequireIssuer(issuer))
	})

	s.Run("anyone else fails with the literal reason", func() {
		err := s.ctrl.RequireIssuer(alice)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(ReasonNotIssuer, dErrors.MessageOf(err))
	})
}

func (s *ControllerSuite) TestAddIssuer() {
	s.Run("non-admin cannot grant", func() {
		err := s.ctrl.AddIssuer(s.ctx, issuer, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.False(s.ctrl.IsIssuer(alice))
	})

	s.Run("admin grants and the grant is idempotent", func() {
		s.Require().NoError(s.ctrl.AddIssuer(s.ctx, admin, alice))
		s.Require().NoError(s.ctrl.AddIssuer(s.ctx, admin, alice))
		s.True(s.ctrl.IsIssuer(alice))
		s.Equal([]id.Address{alice, issuer}, s.ctrl.Issuers())
	})

	s.Run("empty issuer is rejected", func() {
		err := s.ctrl.AddIssuer(s.ctx, admin, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestNew_RequiresAdministrator(t *testing.T) {
	_, err := New(Roles{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = New(Roles{Administrator: admin, Issuers: []id.Address{""}})
	require.Error(t, err)
}
