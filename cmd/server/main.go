package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"trustledger/internal/app"
	"trustledger/internal/events/dispatcher"
	kafkasink "trustledger/internal/events/sinks/kafka"
	postgressink "trustledger/internal/events/sinks/postgres"
	redissink "trustledger/internal/events/sinks/redis"
	"trustledger/internal/platform/config"
	"trustledger/internal/platform/httpserver"
	"trustledger/internal/platform/logger"
	"trustledger/internal/platform/redis"
	httptransport "trustledger/internal/transport/http"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Ledger logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("trustledger exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sinks, health, closers, err := buildSinks(ctx, cfg, log)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Warn("sink close failed", "error", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	ledgers, err := app.New(app.Config{
		Administrator: cfg.Administrator,
		Issuers:       cfg.Issuers,
		Logger:        log,
		Registry:      reg,
		Health:        health,
	})
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Addr, ledgers.Router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting trustledger", "addr", cfg.Addr, "administrator", cfg.Administrator, "sinks", len(sinks), "epoch", ledgers.Records.Epoch())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if len(sinks) > 0 {
		d := dispatcher.New(ledgers.Records, sinks,
			dispatcher.WithLogger(log),
			dispatcher.WithMetrics(ledgers.RecordMetrics),
			dispatcher.WithPollInterval(cfg.Events.PollInterval),
			dispatcher.WithBatchSize(cfg.Events.BatchSize),
		)
		g.Go(func() error {
			if err := d.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildSinks connects every configured observer sink. Closers are returned even
// on error so that partially built sinks are released.
func buildSinks(ctx context.Context, cfg config.Server, log *slog.Logger) ([]dispatcher.Sink, map[string]httptransport.HealthCheck, []func() error, error) {
	var (
		sinks   []dispatcher.Sink
		closers []func() error
		health  = map[string]httptransport.HealthCheck{}
	)

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, closers, err
	}
	if rc != nil {
		closers = append(closers, rc.Close)
		health["redis"] = rc.Health
		sinks = append(sinks, redissink.New(rc.Client))
		log.Info("redis sink enabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, closers, err
		}
		closers = append(closers, ks.Close)
		if err := ks.EnsureTopic(ctx, 3, 1); err != nil {
			return nil, nil, closers, err
		}
		sinks = append(sinks, ks)
		log.Info("kafka sink enabled", "topic", ks.Topic())
	}

	if cfg.DatabaseURL != "" {
		db, err := postgressink.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, closers, err
		}
		ps := postgressink.New(db)
		closers = append(closers, ps.Close)
		health["postgres"] = db.PingContext
		if err := ps.Migrate(ctx); err != nil {
			return nil, nil, closers, err
		}
		sinks = append(sinks, ps)
		log.Info("postgres sink enabled")
	}

	return sinks, health, closers, nil
}
