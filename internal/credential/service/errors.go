package service

import (
	"errors"

	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/sentinel"
)

func wrapCredentialErr(err error) error {
	return wrapStoreErr(err, "credential not found", "failed to load credential")
}

func wrapPendingErr(err error) error {
	return wrapStoreErr(err, "pending credential not found", "failed to load pending credential")
}

func wrapStoreErr(err error, notFound, internal string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internal)
	}
}
