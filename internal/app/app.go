// Package app is the composition root: it builds the access controller, the three
// ledgers, the record log and the HTTP router from configuration.
package app

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"trustledger/internal/access"
	credentialhandler "trustledger/internal/credential/handler"
	credentialmetrics "trustledger/internal/credential/metrics"
	credentialservice "trustledger/internal/credential/service"
	credentialstore "trustledger/internal/credential/store"
	"trustledger/internal/events"
	identityhandler "trustledger/internal/identity/handler"
	identitymetrics "trustledger/internal/identity/metrics"
	identityservice "trustledger/internal/identity/service"
	identitystore "trustledger/internal/identity/store"
	platformmetrics "trustledger/internal/platform/metrics"
	reporthandler "trustledger/internal/report/handler"
	reportmetrics "trustledger/internal/report/metrics"
	reportservice "trustledger/internal/report/service"
	reportstore "trustledger/internal/report/store"
	httptransport "trustledger/internal/transport/http"
	id "trustledger/pkg/domain"
)

// Config is what the ledgers need at construction time.
type Config struct {
	Administrator id.Address
	Issuers       []id.Address
	Logger        *slog.Logger
	// Registry receives every metric. A nil registry uses a private one.
	Registry *prometheus.Registry
	Health   map[string]httptransport.HealthCheck
}

type App struct {
	Access        *access.Controller
	Records       *events.Log
	RecordMetrics *events.Metrics
	Identity      *identityservice.Service
	Credentials   *credentialservice.Service
	Reports       *reportservice.Service
	Router        http.Handler
}

func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	ctrl, err := access.New(access.Roles{
		Administrator: cfg.Administrator,
		Issuers:       cfg.Issuers,
	}, access.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	ops := platformmetrics.New(reg)
	recordMetrics := events.NewMetrics(reg)
	records := events.NewLog(events.WithLogger(logger), events.WithMetrics(recordMetrics))

	identity := identityservice.New(identitystore.NewInMemory(), ctrl, records,
		identityservice.WithLogger(logger),
		identityservice.WithMetrics(identitymetrics.New(reg)),
		identityservice.WithOperationMetrics(ops),
	)
	credentials := credentialservice.New(credentialstore.NewInMemory(), ctrl, records,
		credentialservice.WithLogger(logger),
		credentialservice.WithMetrics(credentialmetrics.New(reg)),
		credentialservice.WithOperationMetrics(ops),
	)
	reports := reportservice.New(reportstore.NewInMemory(), ctrl, records,
		reportservice.WithLogger(logger),
		reportservice.WithMetrics(reportmetrics.New(reg)),
		reportservice.WithOperationMetrics(ops),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   logger,
		Metrics:  ops,
		Gatherer: reg,
		Handlers: []httptransport.Registrar{
			identityhandler.New(identity, logger),
			credentialhandler.New(credentials, logger),
			reporthandler.New(reports, logger),
		},
		Records: records,
		Health:  cfg.Health,
	})

	return &App{
		Access:        ctrl,
		Records:       records,
		RecordMetrics: recordMetrics,
		Identity:      identity,
		Credentials:   credentials,
		Reports:       reports,
		Router:        router,
	}, nil
}
