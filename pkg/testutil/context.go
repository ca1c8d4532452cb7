package testutil

import (
	"net/http"

	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/middleware/auth"
	"trustledger/pkg/requestcontext"
)

// WithCaller puts caller on the request context, as the caller middleware would.
// Use it for handler tests that bypass the middleware chain.
func WithCaller(req *http.Request, caller id.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// AsCaller sets the gateway caller header. Use it for tests that run the full
// router. An empty caller leaves the request anonymous.
func AsCaller(req *http.Request, caller id.Address) *http.Request {
	if caller != "" {
		req.Header.Set(auth.HeaderCallerID, string(caller))
	}
	return req
}
