package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 100*time.Millisecond, c.Etherscan.MinInterval)
	assert.Equal(t, 3, c.Etherscan.MaxAttempts)
	assert.Equal(t, 1500*time.Millisecond, c.Etherscan.RateLimitBackoff)
	assert.Equal(t, "memory", c.Store.Type)
	assert.Equal(t, 4, c.Jobs.Workers)
	assert.Equal(t, 24*time.Hour, c.Jobs.TTL)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: prod
etherscan:
  api_keys: [k1, k2]
  min_interval: 250ms
jobs:
  workers: 8
store:
  type: redis
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, c.Etherscan.APIKeys)
	assert.Equal(t, 250*time.Millisecond, c.Etherscan.MinInterval)
	assert.Equal(t, 8, c.Jobs.Workers)
	assert.Equal(t, "redis", c.Store.Type)
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	_, err := Parse([]byte("environment: test\nstore:\n  type: etcd\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.type")
}

func TestValidateKafkaNeedsBrokers(t *testing.T) {
	_, err := Parse([]byte("environment: test\nkafka:\n  enabled: true\n"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"ETHERSCAN_API_KEYS": "a, b,,c",
		"KAFKA_BROKERS":      "k1:9092",
		"POSTGRES_DSN":       "postgres://localhost/sybilscan",
		"PORT":               "9090",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, []string{"a", "b", "c"}, c.Etherscan.APIKeys)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "postgres", c.Keys.Type)
	assert.Equal(t, 9090, c.Server.Port)
	require.NoError(t, c.Validate())
}
