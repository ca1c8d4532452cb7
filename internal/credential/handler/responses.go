package handler

import id "trustledger/pkg/domain"

// VerifyResponse is the body returned by GET /credentials/{id}/verify.
type VerifyResponse struct {
	ID    id.CredentialID `json:"id"`
	Valid bool            `json:"valid"`
}
