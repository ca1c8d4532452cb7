package httptransport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustledger/internal/events"
	id "trustledger/pkg/domain"
	"trustledger/pkg/platform/middleware/request"
	"trustledger/pkg/requestcontext"
	"trustledger/pkg/testutil"
)

type brokenChain struct {
	*events.Log
}

func (brokenChain) Verify() error { return errors.New("record 2: prev hash mismatch") }

func seededLog(t *testing.T, n int) *events.Log {
	t.Helper()
	log := events.NewLog()
	for i := 0; i < n; i++ {
		entry, err := events.Encode(events.UserVerified{Target: id.Address("0x01")})
		require.NoError(t, err)
		log.Append(context.Background(), entry)
	}
	return log
}

func TestRecordsList(t *testing.T) {
	log := seededLog(t, 5)
	router := NewRouter(Deps{Records: log})

	t.Run("pages from cursor", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/events?after=2&limit=2", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		page := testutil.DecodeBody[RecordPage](t, rr)
		require.Len(t, page.Records, 2)
		assert.Equal(t, uint64(3), page.Records[0].Seq)
		assert.Equal(t, uint64(4), page.Next)
		assert.Equal(t, uint64(5), page.Head)
		assert.Equal(t, log.Epoch(), page.Epoch)
	})

	t.Run("defaults return everything", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/events", nil))
		page := testutil.DecodeBody[RecordPage](t, rr)
		assert.Len(t, page.Records, 5)
		assert.NoError(t, events.VerifyChain(page.Records))
	})

	t.Run("rejects bad cursor", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/events?after=-1", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("rejects zero limit", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/events?limit=0", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
}

func TestRecordsVerify(t *testing.T) {
	t.Run("intact chain", func(t *testing.T) {
		router := NewRouter(Deps{Records: seededLog(t, 3)})
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/events/verify", nil))
		resp := testutil.DecodeBody[VerifyResponse](t, rr)
		assert.True(t, resp.Valid)
		assert.Equal(t, uint64(3), resp.Head)
	})

	t.Run("broken chain", func(t *testing.T) {
		router := NewRouter(Deps{Records: brokenChain{seededLog(t, 3)}})
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/events/verify", nil))
		resp := testutil.DecodeBody[VerifyResponse](t, rr)
		assert.False(t, resp.Valid)
		assert.Contains(t, resp.Error, "prev hash mismatch")
	})
}

type echoCaller struct{}

func (echoCaller) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		_, _ = w.Write([]byte(string(requestcontext.Caller(ctx)) + "|" + requestcontext.RequestID(ctx)))
	})
}

func TestMiddlewareChain(t *testing.T) {
	router := NewRouter(Deps{Handlers: []Registrar{echoCaller{}}})

	req := testutil.AsCaller(httptest.NewRequest(http.MethodGet, "/whoami", nil), "0xalice")
	req.Header.Set(request.HeaderRequestID, "req-1")
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0xalice|req-1", rr.Body.String())
	assert.Equal(t, "req-1", rr.Header().Get(request.HeaderRequestID))
}

func TestNotFound(t *testing.T) {
	rr := testutil.DoRequest(NewRouter(Deps{}), httptest.NewRequest(http.MethodGet, "/nope", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
