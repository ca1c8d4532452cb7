package handler

import (
	"strings"

	dErrors "trustledger/pkg/domain-errors"
)

// RegisterRequest is the body of POST /identity/register.
type RegisterRequest struct {
	ExternalID string `json:"externalId"`
}

func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.ExternalID) == "" {
		return dErrors.New(dErrors.CodeValidation, "externalId is required")
	}
	return nil
}
