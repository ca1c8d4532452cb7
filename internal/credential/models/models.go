package models

import (
	"slices"
	"time"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// Credential is an issued attestation about a holder.
//
// Invariants:
//   - Every field except Revoked, RevokeReason and RevokedAt is immutable
//   - Revoked moves false -> true exactly once
//   - Expiry is unix seconds; 0 means the credential never expires
type Credential struct {
	ID           id.CredentialID `json:"id"`
	Holder       id.Address      `json:"holder"`
	Issuer       id.Address      `json:"issuer"`
	ContentRef   string          `json:"contentRef"`
	Schema       string          `json:"schema"`
	Expiry       int64           `json:"expiry"`
	Revoked      bool            `json:"revoked"`
	RevokeReason string          `json:"revokeReason"`
	IssuedAt     time.Time       `json:"issuedAt"`
	RevokedAt    *time.Time      `json:"revokedAt,omitempty"`
}

// Terms are the attested fields shared by direct issuance and the approval workflow.
type Terms struct {
	Holder     id.Address
	ContentRef string
	Schema     string
	Expiry     int64
}

func (t Terms) Validate() error {
	if t.Holder.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "holder is required")
	}
	if t.Expiry < 0 {
		return dErrors.New(dErrors.CodeValidation, "expiry must be zero or a unix timestamp")
	}
	return nil
}

func NewCredential(credID id.CredentialID, terms Terms, issuer id.Address, now time.Time) (*Credential, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if issuer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer cannot be empty")
	}
	return &Credential{
		ID:         credID,
		Holder:     terms.Holder,
		Issuer:     issuer,
		ContentRef: terms.ContentRef,
		Schema:     terms.Schema,
		Expiry:     terms.Expiry,
		IssuedAt:   now,
	}, nil
}

// ValidAt reports whether the credential is unrevoked and unexpired at now.
func (c *Credential) ValidAt(now time.Time) bool {
	if c.Revoked {
		return false
	}
	return c.Expiry == 0 || now.Unix() < c.Expiry
}

// CanRevoke checks the set-once revocation rule.
func (c *Credential) CanRevoke() error {
	if c.Revoked {
		return dErrors.New(dErrors.CodeInvalidState, "credential already revoked")
	}
	return nil
}

// ApplyRevocation marks the credential revoked. Call CanRevoke first.
func (c *Credential) ApplyRevocation(reason string, now time.Time) {
	c.Revoked = true
	c.RevokeReason = reason
	c.RevokedAt = &now
}

// PendingCredential collects distinct issuer approvals until NeededApprovals is met.
//
// Invariants:
//   - NeededApprovals >= 1
//   - Approvers holds each issuer at most once, in approval order
//   - The initiator is always the first approver
type PendingCredential struct {
	ID              id.CredentialID `json:"id"`
	Holder          id.Address      `json:"holder"`
	Initiator       id.Address      `json:"initiator"`
	ContentRef      string          `json:"contentRef"`
	Schema          string          `json:"schema"`
	Expiry          int64           `json:"expiry"`
	NeededApprovals int             `json:"neededApprovals"`
	Approvers       []id.Address    `json:"approvers"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func NewPendingCredential(credID id.CredentialID, terms Terms, initiator id.Address, needed int, now time.Time) (*PendingCredential, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if needed < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "neededApprovals must be at least 1")
	}
	if initiator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "initiator cannot be empty")
	}
	return &PendingCredential{
		ID:              credID,
		Holder:          terms.Holder,
		Initiator:       initiator,
		ContentRef:      terms.ContentRef,
		Schema:          terms.Schema,
		Expiry:          terms.Expiry,
		NeededApprovals: needed,
		Approvers:       []id.Address{initiator},
		CreatedAt:       now,
	}, nil
}

func (p *PendingCredential) HasApproved(issuer id.Address) bool {
	return slices.Contains(p.Approvers, issuer)
}

// ThresholdMet reports whether enough distinct issuers have approved.
func (p *PendingCredential) ThresholdMet() bool {
	return len(p.Approvers) >= p.NeededApprovals
}

// CanApprove rejects a second approval by the same issuer.
func (p *PendingCredential) CanApprove(issuer id.Address) error {
	if p.HasApproved(issuer) {
		return dErrors.New(dErrors.CodeInvalidState, "issuer already approved")
	}
	return nil
}

// ApplyApproval records the approval. Call CanApprove first.
func (p *PendingCredential) ApplyApproval(issuer id.Address) {
	p.Approvers = append(p.Approvers, issuer)
}

// Finalize converts the pending record into a credential under the same id,
// issued by the approver whose action met the threshold.
func (p *PendingCredential) Finalize(finalizer id.Address, now time.Time) *Credential {
	return &Credential{
		ID:         p.ID,
		Holder:     p.Holder,
		Issuer:     finalizer,
		ContentRef: p.ContentRef,
		Schema:     p.Schema,
		Expiry:     p.Expiry,
		IssuedAt:   now,
	}
}

// Clone returns a deep copy.
func (p *PendingCredential) Clone() *PendingCredential {
	out := *p
	out.Approvers = slices.Clone(p.Approvers)
	return &out
}

// Approval is the outcome of Initiate or Approve. Credential is set once the
// threshold is met; Pending then holds the final approver list.
type Approval struct {
	Pending    *PendingCredential `json:"pending"`
	Credential *Credential        `json:"credential,omitempty"`
}

func (a *Approval) Finalized() bool {
	return a.Credential != nil
}
