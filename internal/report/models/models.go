package models

import (
	"time"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// Report is a deduplicated submission keyed by content fingerprint.
//
// Invariants:
//   - Fingerprint is unique for the lifetime of the ledger, resolved or not
//   - Resolved moves false -> true exactly once, with Resolver set at the same time
type Report struct {
	ID          id.ReportID `json:"id"`
	Reporter    id.Address  `json:"reporter"`
	Fingerprint string      `json:"fingerprint"`
	Category    string      `json:"category"`
	Resolved    bool        `json:"resolved"`
	Resolver    id.Address  `json:"resolver,omitempty"`
	SubmittedAt time.Time   `json:"submittedAt"`
	ResolvedAt  *time.Time  `json:"resolvedAt,omitempty"`
}

func NewReport(reportID id.ReportID, reporter id.Address, fingerprint, category string, now time.Time) (*Report, error) {
	if reporter.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reporter cannot be empty")
	}
	if fingerprint == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "fingerprint is required")
	}
	return &Report{
		ID:          reportID,
		Reporter:    reporter,
		Fingerprint: fingerprint,
		Category:    category,
		SubmittedAt: now,
	}, nil
}

// CanResolve reports whether the resolution transition is still pending.
// Resolving twice is a no-op for callers, not an error.
func (r *Report) CanResolve() bool {
	return !r.Resolved
}

// ApplyResolution marks the report resolved by resolver. Call CanResolve first.
func (r *Report) ApplyResolution(resolver id.Address, now time.Time) {
	r.Resolved = true
	r.Resolver = resolver
	r.ResolvedAt = &now
}
