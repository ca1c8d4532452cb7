package service

import (
	"errors"

	"trustledger/internal/identity/store"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/sentinel"
)

func requireCaller(caller id.Address) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is required")
	}
	return nil
}

func requireTarget(target id.Address) error {
	if target.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "target is required")
	}
	return nil
}

func wrapCreateErr(err error) error {
	switch {
	case errors.Is(err, store.ErrExternalIDTaken):
		return dErrors.New(dErrors.CodeConflict, "DID already registered")
	case errors.Is(err, store.ErrOwnerTaken):
		return dErrors.New(dErrors.CodeConflict, "address already registered")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register user")
	}
}

func wrapUserErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
}
