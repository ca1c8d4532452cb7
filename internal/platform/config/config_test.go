package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trustledger/pkg/domain"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("TRUSTLEDGER_ADMIN", "0xadmin")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, id.Address("0xadmin"), cfg.Administrator)
	assert.Empty(t, cfg.Issuers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "trustledger.records", cfg.Kafka.Topic)
	assert.Equal(t, time.Second, cfg.Events.PollInterval)
	assert.Equal(t, 100, cfg.Events.BatchSize)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TRUSTLEDGER_ADDR", ":9090")
	t.Setenv("TRUSTLEDGER_ADMIN", "0xadmin")
	t.Setenv("TRUSTLEDGER_ISSUERS", "0xa, 0xb,,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EVENTS_POLL_INTERVAL", "250ms")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []id.Address{"0xa", "0xb"}, cfg.Issuers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Events.PollInterval)
	assert.Equal(t, 10, cfg.Redis.PoolSize, "malformed values fall back to defaults")
}

func TestValidate(t *testing.T) {
	t.Run("missing administrator", func(t *testing.T) {
		err := Server{Addr: ":8080"}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRUSTLEDGER_ADMIN")
	})

	t.Run("malformed issuer", func(t *testing.T) {
		err := Server{Addr: ":8080", Administrator: "0xadmin", Issuers: []id.Address{"bad issuer"}}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRUSTLEDGER_ISSUERS")
	})
}
