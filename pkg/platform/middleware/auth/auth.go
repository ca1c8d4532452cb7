// Package auth attaches the already-authenticated caller to the request context.
//
// Authentication happens upstream: the fronting gateway verifies the caller and
// forwards its address in the X-Caller-ID header. This middleware only parses and
// propagates it. Handlers that need a caller reject requests without one.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	id "trustledger/pkg/domain"
	dErrors "trustledger/pkg/domain-errors"
	request "trustledger/pkg/platform/middleware/request"
	"trustledger/pkg/requestcontext"
)

// HeaderCallerID carries the caller address set by the gateway.
const HeaderCallerID = "X-Caller-ID"

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode dErrors.Code, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}

// CallerIdentity parses X-Caller-ID into the request context. A missing header
// passes through with no caller; a malformed one is rejected with 400.
func CallerIdentity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderCallerID)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			caller, err := id.ParseAddress(raw)
			if err != nil {
				logger.WarnContext(ctx, "rejected malformed caller header",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusBadRequest, dErrors.CodeValidation, "invalid "+HeaderCallerID+" header")
				return
			}

			ctx = requestcontext.WithCaller(ctx, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
