package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	id "trustledger/pkg/domain"
	pstrings "trustledger/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	Administrator   id.Address
	Issuers         []id.Address
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Redis           RedisConfig
	Kafka           KafkaConfig
	DatabaseURL     string
	Events          EventsConfig
}

// RedisConfig configures the Redis observer sink. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the Kafka observer sink. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// EventsConfig tunes the record dispatcher.
type EventsConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Malformed numeric or duration values fall back to defaults.
func FromEnv() Server {
	return Server{
		Addr:            envOr("TRUSTLEDGER_ADDR", ":8080"),
		Administrator:   id.Address(strings.TrimSpace(os.Getenv("TRUSTLEDGER_ADMIN"))),
		Issuers:         addressList(os.Getenv("TRUSTLEDGER_ISSUERS")),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_TOPIC", "trustledger.records"),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Events: EventsConfig{
			PollInterval: envDuration("EVENTS_POLL_INTERVAL", time.Second),
			BatchSize:    envInt("EVENTS_BATCH_SIZE", 100),
		},
	}
}

// Validate reports configuration that would prevent the ledgers from starting.
func (s Server) Validate() error {
	var errs []error
	if _, err := id.ParseAddress(string(s.Administrator)); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTLEDGER_ADMIN: %w", err))
	}
	for _, issuer := range s.Issuers {
		if _, err := id.ParseAddress(string(issuer)); err != nil {
			errs = append(errs, fmt.Errorf("TRUSTLEDGER_ISSUERS %q: %w", issuer, err))
		}
	}
	if s.Addr == "" {
		errs = append(errs, errors.New("TRUSTLEDGER_ADDR is empty"))
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func addressList(raw string) []id.Address {
	parts := pstrings.SplitList(raw)
	if len(parts) == 0 {
		return nil
	}
	out := make([]id.Address, 0, len(parts))
	for _, p := range parts {
		out = append(out, id.Address(p))
	}
	return out
}
