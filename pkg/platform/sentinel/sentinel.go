package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) so
// ledger services can translate them into coded domain errors.
//
// These represent factual states about records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrAlreadyUsed: a unique key (external id, fingerprint, owner) is already bound
// - ErrInvalidState: record is in the wrong state for the requested mutation
// - ErrUnavailable: an observer sink is temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
