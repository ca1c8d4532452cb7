package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	id "trustledger/pkg/domain"
	"trustledger/pkg/requestcontext"
)

func TestCallerIdentity(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	var seen id.Address
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Caller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := CallerIdentity(logger)(next)

	t.Run("propagates caller", func(t *testing.T) {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderCallerID, "  0xalice ")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, id.Address("0xalice"), seen)
	})

	t.Run("missing header passes through without caller", func(t *testing.T) {
		seen = "stale"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.True(t, seen.IsZero())
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderCallerID, strings.Repeat("a", 300))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"validation_error","error_description":"invalid X-Caller-ID header"}`, rr.Body.String())
	})
}
