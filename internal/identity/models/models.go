package models

import (
	"time"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// User binds an owner address to an external identifier such as a DID.
//
// Invariants:
//   - ExternalID is unique across all users and never released
//   - Verified only moves false -> true
//   - Owner and ExternalID are immutable after registration
type User struct {
	Owner        id.Address `json:"owner"`
	ExternalID   string     `json:"externalId"`
	Verified     bool       `json:"verified"`
	RegisteredAt time.Time  `json:"registeredAt"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
}

func NewUser(owner id.Address, externalID string, now time.Time) (*User, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner cannot be empty")
	}
	return &User{
		Owner:        owner,
		ExternalID:   externalID,
		RegisteredAt: now,
	}, nil
}

// CanVerify reports whether the user still needs the verification transition.
// Verification is idempotent, so an already verified user is not an error for
// callers; they check the returned flag instead.
func (u *User) CanVerify() bool {
	return !u.Verified
}

// ApplyVerification marks the user verified. Call CanVerify first.
func (u *User) ApplyVerification(now time.Time) {
	u.Verified = true
	u.VerifiedAt = &now
}
