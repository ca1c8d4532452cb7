// Package httptransport assembles the HTTP surface: middleware, ledger handlers,
// the record log endpoints and operational routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustledger/internal/platform/metrics"
	platformmw "trustledger/internal/platform/middleware"
	"trustledger/pkg/platform/httputil"
	"trustledger/pkg/platform/middleware/auth"
	"trustledger/pkg/platform/middleware/metadata"
	request "trustledger/pkg/platform/middleware/request"
	"trustledger/pkg/platform/middleware/requesttime"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports the health of one dependency.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Handlers []Registrar
	Records  RecordSource
	Health   map[string]HealthCheck
}

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(auth.CallerIdentity(logger))
	r.Use(request.Logger(logger))
	if deps.Metrics != nil {
		r.Use(platformmw.Metrics(deps.Metrics))
	}

	for _, h := range deps.Handlers {
		h.Register(r)
	}
	if deps.Records != nil {
		newRecordsHandler(deps.Records, logger).Register(r)
	}

	r.Get("/healthz", healthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error":             "not_found",
			"error_description": "route not found",
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
