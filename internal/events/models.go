package events

import (
	id "trustledger/pkg/domain"
)

// Ledger names the component that emitted a record.
type Ledger string

const (
	LedgerIdentity   Ledger = "identity"
	LedgerCredential Ledger = "credential"
	LedgerReport     Ledger = "report"
)

// Kind is the emitted record type. Names match what observers already consume.
type Kind string

const (
	KindUserRegistered    Kind = "UserRegistered"
	KindUserVerified      Kind = "UserVerified"
	KindCredentialIssued  Kind = "CredentialIssued"
	KindPendingCreated    Kind = "PendingCreated"
	KindCredentialRevoked Kind = "CredentialRevoked"
	KindReportSubmitted   Kind = "ReportSubmitted"
	KindReportResolved    Kind = "ReportResolved"
)

// Category classifies records for routing and retention in sinks.
type Category string

const (
	// CategoryCompliance covers records with regulatory weight: identity binding and
	// credential issuance.
	CategoryCompliance Category = "compliance"
	// CategorySecurity covers invalidations and abuse handling.
	CategorySecurity Category = "security"
	// CategoryOperations covers intermediate workflow steps.
	CategoryOperations Category = "operations"
)

var kindCategories = map[Kind]Category{
	KindUserRegistered:    CategoryCompliance,
	KindUserVerified:      CategoryCompliance,
	KindCredentialIssued:  CategoryCompliance,
	KindPendingCreated:    CategoryOperations,
	KindCredentialRevoked: CategorySecurity,
	KindReportSubmitted:   CategorySecurity,
	KindReportResolved:    CategorySecurity,
}

// Category returns the category for this kind. Unknown kinds default to operations.
func (k Kind) Category() Category {
	if cat, ok := kindCategories[k]; ok {
		return cat
	}
	return CategoryOperations
}

// Payload is the body of an emitted record. Struct field order is the wire order.
type Payload interface {
	Ledger() Ledger
	Kind() Kind
}

type UserRegistered struct {
	Caller     id.Address `json:"caller"`
	ExternalID string     `json:"externalId"`
}

type UserVerified struct {
	Target id.Address `json:"target"`
}

type CredentialIssued struct {
	ID     id.CredentialID `json:"id"`
	Holder id.Address      `json:"holder"`
	Issuer id.Address      `json:"issuer"`
}

type PendingCreated struct {
	ID     id.CredentialID `json:"id"`
	Holder id.Address      `json:"holder"`
	Needed int             `json:"needed"`
}

type CredentialRevoked struct {
	ID     id.CredentialID `json:"id"`
	Reason string          `json:"reason"`
}

type ReportSubmitted struct {
	ID          id.ReportID `json:"id"`
	Reporter    id.Address  `json:"reporter"`
	Fingerprint string      `json:"fingerprint"`
	Category    string      `json:"category"`
}

type ReportResolved struct {
	ID       id.ReportID `json:"id"`
	Resolver id.Address  `json:"resolver"`
}

func (UserRegistered) Ledger() Ledger    { return LedgerIdentity }
func (UserVerified) Ledger() Ledger      { return LedgerIdentity }
func (CredentialIssued) Ledger() Ledger  { return LedgerCredential }
func (PendingCreated) Ledger() Ledger    { return LedgerCredential }
func (CredentialRevoked) Ledger() Ledger { return LedgerCredential }
func (ReportSubmitted) Ledger() Ledger   { return LedgerReport }
func (ReportResolved) Ledger() Ledger    { return LedgerReport }

func (UserRegistered) Kind() Kind    { return KindUserRegistered }
func (UserVerified) Kind() Kind      { return KindUserVerified }
func (CredentialIssued) Kind() Kind  { return KindCredentialIssued }
func (PendingCreated) Kind() Kind    { return KindPendingCreated }
func (CredentialRevoked) Kind() Kind { return KindCredentialRevoked }
func (ReportSubmitted) Kind() Kind   { return KindReportSubmitted }
func (ReportResolved) Kind() Kind    { return KindReportResolved }
