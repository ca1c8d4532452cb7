package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"trustledger/internal/events"
	dErrors "trustledger/pkg/domain-errors"
	"trustledger/pkg/platform/httputil"
	"trustledger/pkg/requestcontext"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// RecordSource is the read side of the emitted-record log.
type RecordSource interface {
	Epoch() uuid.UUID
	Since(after uint64, limit int) []events.Record
	Head() uint64
	Verify() error
}

type recordsHandler struct {
	records RecordSource
	logger  *slog.Logger
}

func newRecordsHandler(records RecordSource, logger *slog.Logger) *recordsHandler {
	return &recordsHandler{records: records, logger: logger}
}

func (h *recordsHandler) Register(r chi.Router) {
	r.Get("/events", h.handleList)
	r.Get("/events/verify", h.handleVerify)
}

// RecordPage is one page of records. Epoch changes when the server restarts,
// which resets Head and invalidates cursors from the previous epoch.
type RecordPage struct {
	Epoch   uuid.UUID       `json:"epoch"`
	Records []events.Record `json:"records"`
	Head    uint64          `json:"head"`
	Next    uint64          `json:"next"`
}

type VerifyResponse struct {
	Valid bool   `json:"valid"`
	Head  uint64 `json:"head"`
	Error string `json:"error,omitempty"`
}

// handleList handles GET /events?after=&limit=. Next is the cursor to pass as
// after for the following page.
func (h *recordsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	after, err := queryUint(r, "after", 0)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "after must be a non-negative integer"))
		return
	}
	limit, err := queryUint(r, "limit", defaultPageSize)
	if err != nil || limit == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	page := h.records.Since(after, int(limit))
	if page == nil {
		page = []events.Record{}
	}
	next := after
	if len(page) > 0 {
		next = page[len(page)-1].Seq
	}
	httputil.WriteJSON(w, http.StatusOK, RecordPage{
		Epoch:   h.records.Epoch(),
		Records: page,
		Head:    h.records.Head(),
		Next:    next,
	})
}

// handleVerify handles GET /events/verify.
func (h *recordsHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := VerifyResponse{Valid: true, Head: h.records.Head()}
	if err := h.records.Verify(); err != nil {
		h.logger.ErrorContext(ctx, "record chain verification failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		resp.Valid = false
		resp.Error = err.Error()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func queryUint(r *http.Request, key string, fallback uint64) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
