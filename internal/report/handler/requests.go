package handler

import (
	"strings"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// SubmitRequest is the body of POST /reports.
type SubmitRequest struct {
	Fingerprint string `json:"fingerprint"`
	Category    string `json:"category"`
}

func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Fingerprint) == "" {
		return dErrors.New(dErrors.CodeValidation, "fingerprint is required")
	}
	return nil
}

// MyReportsResponse is the body returned by GET /reports/mine.
type MyReportsResponse struct {
	Reporter id.Address    `json:"reporter"`
	IDs      []id.ReportID `json:"ids"`
}
