package domain

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "trustledger/pkg/domain-errors"
)

// maxAddressLen bounds caller identifiers accepted at trust boundaries.
const maxAddressLen = 256

// Address identifies a ledger participant: the administrator, an issuer, a holder or a
// reporter. The core never authenticates it; it arrives already vouched for.
type Address string

// CredentialID identifies a credential or a pending credential. Both share one id space.
type CredentialID uint64

// ReportID identifies a report.
type ReportID uint64

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return a == "" }

func (c CredentialID) String() string { return strconv.FormatUint(uint64(c), 10) }

func (r ReportID) String() string { return strconv.FormatUint(uint64(r), 10) }

// ParseAddress trims and validates a caller identifier.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	if len(s) > maxAddressLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) || unicode.Is(unicode.Cf, r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "address contains invalid characters")
		}
	}
	return Address(s), nil
}

// ParseCredentialID parses a decimal credential id. Zero is never allocated.
func ParseCredentialID(s string) (CredentialID, error) {
	n, err := parseLedgerID(s)
	if err != nil {
		return 0, err
	}
	return CredentialID(n), nil
}

// ParseReportID parses a decimal report id. Zero is never allocated.
func ParseReportID(s string) (ReportID, error) {
	n, err := parseLedgerID(s)
	if err != nil {
		return 0, err
	}
	return ReportID(n), nil
}

func parseLedgerID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	return n, nil
}
