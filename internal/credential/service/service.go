package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	credentialmetrics "trustledger/internal/credential/metrics"
	"trustledger/internal/credential/models"
	"trustledger/internal/events"
	platformmetrics "trustledger/internal/platform/metrics"
	"trustledger/internal/platform/tracing"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/sentinel"
	"trustledger/pkg/platform/tx"
	"trustledger/pkg/requestcontext"
)

const ledgerName = "credential"

const (
	maxFieldLength  = 2048
	maxReasonLength = 1024
)

type CredentialStore interface {
	NextID(ctx context.Context) (id.CredentialID, error)
	CreateCredential(ctx context.Context, c *models.Credential) error
	CreatePending(ctx context.Context, p *models.PendingCredential) error
	FindCredential(ctx context.Context, credID id.CredentialID) (*models.Credential, error)
	FindPending(ctx context.Context, credID id.CredentialID) (*models.PendingCredential, error)
	UpdatePending(ctx context.Context, p *models.PendingCredential) error
	Finalize(ctx context.Context, c *models.Credential) error
	ExecuteCredential(ctx context.Context, credID id.CredentialID, validate func(*models.Credential) error, mutate func(*models.Credential)) (*models.Credential, error)
	CountPending(ctx context.Context) (int, error)
}

// AccessChecker is the slice of the access controller the ledger needs.
type AccessChecker interface {
	RequireAdmin(caller id.Address) error
	RequireIssuer(caller id.Address) error
	AddIssuer(ctx context.Context, caller, issuer id.Address) error
}

// IssueRequest carries the attested fields of a credential.
type IssueRequest struct {
	Holder     id.Address
	ContentRef string
	Schema     string
	Expiry     int64
}

// InitiateRequest opens an N-of-M approval workflow.
type InitiateRequest struct {
	IssueRequest
	NeededApprovals int
}

func (r IssueRequest) terms() models.Terms {
	return models.Terms{
		Holder:     r.Holder,
		ContentRef: r.ContentRef,
		Schema:     r.Schema,
		Expiry:     r.Expiry,
	}
}

func (r IssueRequest) validate() error {
	if err := r.terms().Validate(); err != nil {
		return err
	}
	if len(r.ContentRef) > maxFieldLength || len(r.Schema) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "contentRef and schema must be at most 2048 bytes")
	}
	return nil
}

// Service is the credential ledger: direct issuance, multi-issuer approval,
// revocation and verification.
type Service struct {
	credentials CredentialStore
	access      AccessChecker
	emitter     events.Emitter
	tx          tx.Serializer
	logger      *slog.Logger
	metrics     *credentialmetrics.Metrics
	ops         *platformmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *credentialmetrics.Metrics) Option {
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

func New(credentials CredentialStore, access AccessChecker, emitter events.Emitter, opts ...Option) *Service {
	s := &Service{
		credentials: credentials,
		access:      access,
		emitter:     emitter,
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

// Issue creates a credential in one step with the caller as issuer.
func (s *Service) Issue(ctx context.Context, caller id.Address, req IssueRequest) (_ *models.Credential, err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "Issue", caller)
	defer s.observe(span, "issue", time.Now(), &err)

	if err := s.access.RequireIssuer(caller); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	var credential *models.Credential
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		next, err := s.credentials.NextID(txCtx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate credential id")
		}
		c, err := models.NewCredential(next, req.terms(), caller, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		entry, err := events.Encode(events.CredentialIssued{ID: c.ID, Holder: c.Holder, Issuer: c.Issuer})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}

		if err := s.credentials.CreateCredential(txCtx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
		}
		s.emitter.Append(txCtx, entry)
		credential = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, events.KindCredentialIssued, "credential_id", credential.ID, "holder", credential.Holder, "issuer", caller)
	if s.metrics != nil {
		s.metrics.IncrementIssued("direct")
	}
	return credential, nil
}

// Initiate opens a pending credential with the caller as first approver. When a
// single approval is enough the credential is issued immediately.
func (s *Service) Initiate(ctx context.Context, caller id.Address, req InitiateRequest) (_ *models.Approval, err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "Initiate", caller)
	defer s.observe(span, "initiate", time.Now(), &err)

	if err := s.access.RequireIssuer(caller); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.NeededApprovals < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "neededApprovals must be at least 1")
	}

	var result *models.Approval
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		next, err := s.credentials.NextID(txCtx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate credential id")
		}
		p, err := models.NewPendingCredential(next, req.terms(), caller, req.NeededApprovals, now)
		if err != nil {
			return err
		}
		created, err := events.Encode(events.PendingCreated{ID: p.ID, Holder: p.Holder, Needed: p.NeededApprovals})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}

		if !p.ThresholdMet() {
			if err := s.credentials.CreatePending(txCtx, p); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pending credential")
			}
			s.emitter.Append(txCtx, created)
			result = &models.Approval{Pending: p}
			return nil
		}

		c := p.Finalize(caller, now)
		issued, err := events.Encode(events.CredentialIssued{ID: c.ID, Holder: c.Holder, Issuer: c.Issuer})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}
		if err := s.credentials.CreateCredential(txCtx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
		}
		s.emitter.Append(txCtx, created)
		s.emitter.Append(txCtx, issued)
		result = &models.Approval{Pending: p, Credential: c}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, events.KindPendingCreated, "credential_id", result.Pending.ID, "holder", result.Pending.Holder,
		"needed", result.Pending.NeededApprovals, "initiator", caller)
	s.afterApproval(ctx, result, caller)
	return result, nil
}

// Approve adds the caller's approval to a pending credential. The approval that
// meets the threshold issues the credential with the caller as issuer.
func (s *Service) Approve(ctx context.Context, caller id.Address, credID id.CredentialID) (_ *models.Approval, err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "Approve", caller)
	defer s.observe(span, "approve", time.Now(), &err)

	if err := s.access.RequireIssuer(caller); err != nil {
		return nil, err
	}

	var result *models.Approval
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.credentials.FindPending(txCtx, credID)
		if err != nil {
			return wrapPendingErr(err)
		}
		if err := p.CanApprove(caller); err != nil {
			return err
		}
		p.ApplyApproval(caller)

		if !p.ThresholdMet() {
			if err := s.credentials.UpdatePending(txCtx, p); err != nil {
				return wrapPendingErr(err)
			}
			result = &models.Approval{Pending: p}
			return nil
		}

		c := p.Finalize(caller, requestcontext.Now(txCtx))
		issued, err := events.Encode(events.CredentialIssued{ID: c.ID, Holder: c.Holder, Issuer: c.Issuer})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}
		if err := s.credentials.Finalize(txCtx, c); err != nil {
			return wrapPendingErr(err)
		}
		s.emitter.Append(txCtx, issued)
		result = &models.Approval{Pending: p, Credential: c}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementApprovals()
	}
	s.afterApproval(ctx, result, caller)
	return result, nil
}

// Revoke invalidates an issued credential. Only the administrator may revoke and
// a credential can be revoked once.
func (s *Service) Revoke(ctx context.Context, caller id.Address, credID id.CredentialID, reason string) (_ *models.Credential, err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "Revoke", caller)
	defer s.observe(span, "revoke", time.Now(), &err)

	if err := s.access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if len(reason) > maxReasonLength {
		return nil, dErrors.New(dErrors.CodeValidation, "reason must be at most 1024 bytes")
	}

	var credential *models.Credential
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entry, err := events.Encode(events.CredentialRevoked{ID: credID, Reason: reason})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode record")
		}
		now := requestcontext.Now(txCtx)
		c, err := s.credentials.ExecuteCredential(txCtx, credID,
			func(c *models.Credential) error {
				return c.CanRevoke()
			},
			func(c *models.Credential) {
				c.ApplyRevocation(reason, now)
			},
		)
		if err != nil {
			return wrapCredentialErr(err)
		}
		s.emitter.Append(txCtx, entry)
		credential = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, events.KindCredentialRevoked, "credential_id", credID, "reason", reason, "revoked_by", caller)
	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	return credential, nil
}

// Verify reports whether credID names an issued, unrevoked, unexpired credential.
// Unknown and pending ids are simply not valid.
func (s *Service) Verify(ctx context.Context, credID id.CredentialID) (bool, error) {
	c, err := s.credentials.FindCredential(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observeVerify(false)
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	valid := c.ValidAt(requestcontext.Now(ctx))
	s.observeVerify(valid)
	return valid, nil
}

func (s *Service) Credential(ctx context.Context, credID id.CredentialID) (*models.Credential, error) {
	c, err := s.credentials.FindCredential(ctx, credID)
	if err != nil {
		return nil, wrapCredentialErr(err)
	}
	return c, nil
}

func (s *Service) Pending(ctx context.Context, credID id.CredentialID) (*models.PendingCredential, error) {
	p, err := s.credentials.FindPending(ctx, credID)
	if err != nil {
		return nil, wrapPendingErr(err)
	}
	return p, nil
}

// AddIssuer grants the issuer role. Only the administrator may call it.
func (s *Service) AddIssuer(ctx context.Context, caller, issuer id.Address) (err error) {
	ctx, span := tracing.Start(ctx, ledgerName, "AddIssuer", caller)
	defer s.observe(span, "add_issuer", time.Now(), &err)

	return s.access.AddIssuer(ctx, caller, issuer)
}

func (s *Service) afterApproval(ctx context.Context, result *models.Approval, caller id.Address) {
	if result.Finalized() {
		s.logAudit(ctx, events.KindCredentialIssued, "credential_id", result.Credential.ID,
			"holder", result.Credential.Holder, "issuer", caller, "approvers", len(result.Pending.Approvers))
		if s.metrics != nil {
			s.metrics.IncrementIssued("multisig")
		}
	}
	if s.metrics != nil {
		if n, err := s.credentials.CountPending(ctx); err == nil {
			s.metrics.SetPending(n)
		}
	}
}

func (s *Service) observeVerify(valid bool) {
	if s.metrics != nil {
		s.metrics.ObserveVerify(valid)
	}
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
