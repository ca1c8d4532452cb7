package handler

import (
	"strings"

	"trustledger/internal/credential/service"
	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
)

// IssueRequest is the body of POST /credentials.
type IssueRequest struct {
	Holder     string `json:"holder"`
	ContentRef string `json:"contentRef"`
	Schema     string `json:"schema"`
	Expiry     int64  `json:"expiry"`

	holder id.Address
}

func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	holder, err := id.ParseAddress(r.Holder)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "holder: "+dErrors.MessageOf(err))
	}
	r.holder = holder
	r.ContentRef = strings.TrimSpace(r.ContentRef)
	r.Schema = strings.TrimSpace(r.Schema)
	if r.Expiry < 0 {
		return dErrors.New(dErrors.CodeValidation, "expiry must be zero or a unix timestamp")
	}
	return nil
}

func (r *IssueRequest) toService() service.IssueRequest {
	return service.IssueRequest{
		Holder:     r.holder,
		ContentRef: r.ContentRef,
		Schema:     r.Schema,
		Expiry:     r.Expiry,
	}
}

// InitiateRequest is the body of POST /credentials/pending.
type InitiateRequest struct {
	IssueRequest
	NeededApprovals int `json:"neededApprovals"`
}

func (r *InitiateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := r.IssueRequest.Validate(); err != nil {
		return err
	}
	if r.NeededApprovals < 1 {
		return dErrors.New(dErrors.CodeValidation, "neededApprovals must be at least 1")
	}
	return nil
}

func (r *InitiateRequest) toService() service.InitiateRequest {
	return service.InitiateRequest{
		IssueRequest:    r.IssueRequest.toService(),
		NeededApprovals: r.NeededApprovals,
	}
}

// RevokeRequest is the body of POST /credentials/{id}/revoke.
type RevokeRequest struct {
	Reason string `json:"reason"`
}

// AddIssuerRequest is the body of POST /credentials/issuers.
type AddIssuerRequest struct {
	Issuer string `json:"issuer"`

	issuer id.Address
}

func (r *AddIssuerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	issuer, err := id.ParseAddress(r.Issuer)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "issuer: "+dErrors.MessageOf(err))
	}
	r.issuer = issuer
	return nil
}
