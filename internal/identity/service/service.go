package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"trustledger/internal/events"
	identitymetrics "trustledger/internal/identity/metrics"
	"trustledger/internal/identity/models"
	platformmetrics "trustledger/internal/platform/metrics"
	"trustledger/internal/platform/tracing"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/sentinel"
	"trustledger/pkg/platform/tx"
	"trustledger/pkg/requestcontext"
)

const ledgerName = "identity"

// maxExternalIDLength bounds the external identifier accepted by Register.
const maxExternalIDLength = 2048

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByOwner(ctx context.Context, owner id.Address) (*models.User, error)
	ExternalIDInUse(ctx context.Context, externalID string) (bool, error)
	Execute(ctx context.Context, owner id.Address, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error)
}

// AccessChecker is the slice of the access controller the registry needs.
type AccessChecker interface {
	RequireAdmin(caller id.Address) error
}

// Service is the identity registry: it binds addresses to external ids and
// tracks administrator verification.
type Service struct {
	users   UserStore
	access  AccessChecker
	emitter events.Emitter
	tx      tx.Serializer
	logger  *slog.Logger
	metrics *identitymetrics.Metrics
	ops     *platformmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithOperationMetrics(m *platformmetrics.Metrics) Option {
	return func(s *Service) {
		s.ops = m
	}
}

// WithSerializer replaces the default per-ledger exclusive serializer.
func WithSerializer(t tx.Serializer) Option {
	return func(s *Service) {
		s.tx = t
	}
}

func New(users UserStore, access AccessChecker, emitter events.Emitter, opts ...Option) *Service {
	s := &Service{
		users:   users,
		access:  access,
		emitter: emitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewExclusive()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Register creates the caller's user record bound to externalID.
func (s *Service) Register(ctx context.Context, caller id.Address, externalID string) (_ *models.User, err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "Register", caller)
	defer s.observe(span, "register", time.Now(), &err)

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "externalId is required")
	}
	if len(externalID) > maxExternalIDLength {
		return nil, dErrors.New(dErrors.CodeValidation, "externalId is too long")
	}

	var user *models.User
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		inUse, err := s.users.ExternalIDInUse(txCtx, externalID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check external id")
		}
		if inUse {
			return dErrors.New(dErrors.CodeConflict, "DID already registered")
		}

		u, err := models.NewUser(caller, externalID, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		entry, err := events.Encode(events.UserRegistered{Caller: caller, ExternalID: externalID})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}

		if err := s.users.Create(txCtx, u); err != nil {
			return wrapCreateErr(err)
		}
		s.emitter.Append(txCtx, entry)
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, events.KindUserRegistered, "owner", caller, "external_id", externalID)
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	return user, nil
}

// VerifyUser marks target verified. Only the administrator may call it. Verifying
// an already verified user succeeds without emitting a second record.
func (s *Service) VerifyUser(ctx context.Context, caller, target id.Address) (_ *models.User, err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "VerifyUser", caller)
	defer s.observe(span, "verify_user", time.Now(), &err)

	if err := s.access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := requireTarget(target); err != nil {
		return nil, err
	}

	var (
		user        *models.User
		transitions bool
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entry, err := events.Encode(events.UserVerified{Target: target})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}
		now := requestcontext.Now(txCtx)
		u, err := s.users.Execute(txCtx, target,
			func(u *models.User) error {
				transitions = u.CanVerify()
				return nil
			},
			func(u *models.User) {
				if transitions {
					u.ApplyVerification(now)
				}
			},
		)
		if err != nil {
			return wrapUserErr(err)
		}
		if transitions {
			s.emitter.Append(txCtx, entry)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitions {
		s.logAudit(ctx, events.KindUserVerified, "target", target, "verified_by", caller)
		if s.metrics != nil {
			s.metrics.IncrementVerified()
		}
	}
	return user, nil
}

// RestrictedAction succeeds only for verified callers. It has no effect.
func (s *Service) RestrictedAction(ctx context.Context, caller id.Address) (err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "RestrictedAction", caller)
	defer s.observe(span, "restricted_action", time.Now(), &err)

	verified, err := s.IsVerified(ctx, caller)
	if err != nil {
		return err
	}
	if !verified {
		return dErrors.New(dErrors.CodeForbidden, "User not verified")
	}
	return nil
}

// User returns the record owned by owner.
func (s *Service) User(ctx context.Context, owner id.Address) (*models.User, error) {
	u, err := s.users.FindByOwner(ctx, owner)
	if err != nil {
		return nil, wrapUserErr(err)
	}
	return u, nil
}

// IsVerified reports whether owner holds a verified record. Unknown owners are
// simply not verified.
func (s *Service) IsVerified(ctx context.Context, owner id.Address) (bool, error) {
	u, err := s.users.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return u.Verified, nil
}

func (s *Service) observe(span trace.Span, operation string, start time.Time, err *error) {
	tracing.End(span, *err)
	if s.ops != nil {
		s.ops.ObserveOperation(ledgerName, operation, start, *err)
	}
}

func (s *Service) logAudit(ctx context.Context, kind events.Kind, attrs ...any) {
	args := append([]any{
		"log_type", "audit",
		"event", string(kind),
		"request_id", requestcontext.RequestID(ctx),
	}, attrs...)
	s.logger.InfoContext(ctx, string(kind), args...)
}
