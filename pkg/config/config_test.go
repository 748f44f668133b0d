package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
feed:
  url: wss://feed.test/ws
`

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "paper", c.Mode)
	assert.Equal(t, "NIFTY", c.Strategy.Index)
	assert.Equal(t, 65, c.Strategy.LotSize)
	assert.Equal(t, 17.0, c.Regime.VixPanic)
	assert.Equal(t, 55, c.Regime.Confidence.Panic)
	assert.Equal(t, 90*time.Second, c.Regime.IntervalHighVol)
	assert.Equal(t, []string{"2885", "1333", "4963", "1594", "11536"}, c.Feed.HeavyweightTokens)
	assert.Equal(t, 10*time.Second, c.Kafka.Consumer.MaxAge)
	assert.Equal(t, 5, c.Postgres.MaxOpenConns)
	assert.Zero(t, c.Broker.PaperMargin)
	assert.Equal(t, FeaturesConfig{RSIPeriod: 14, FastMA: 9, SlowMA: 21, HVPeriod: 20}, c.Features)
}

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	c, err := Parse([]byte(minimal + `
strategy:
  capital: 500000
regime:
  confidence:
    panic: 58
`))
	require.NoError(t, err)
	assert.Equal(t, 500000.0, c.Strategy.Capital)
	assert.Equal(t, 0.01, c.Strategy.BaseRisk)
	assert.Equal(t, 58, c.Regime.Confidence.Panic)
	assert.Equal(t, 75, c.Regime.Confidence.UltraLow)
	assert.Equal(t, "Asia/Kolkata", c.Session.Timezone)
	assert.Equal(t, 14, c.Features.RSIPeriod)
}

func TestParseFeaturePeriods(t *testing.T) {
	c, err := Parse([]byte(minimal + `
features:
  rsi_period: 7
  fast_ma: 5
  slow_ma: 13
`))
	require.NoError(t, err)
	assert.Equal(t, FeaturesConfig{RSIPeriod: 7, FastMA: 5, SlowMA: 13, HVPeriod: 20}, c.Features)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown mode":           minimal + "mode: demo\n",
		"live without broker":    minimal + "mode: live\n",
		"websocket without url":  "feed:\n  source: websocket\n",
		"kafka without brokers":  minimal + "events:\n  backend: kafka\n",
		"postgres without dsn":   minimal + "events:\n  backend: postgres\n",
		"descending breakpoints": minimal + "regime:\n  vix_spiking: 20\n",
		"bad session open":       minimal + "session:\n  open: \"9am\"\n",
		"bad timezone":           minimal + "session:\n  timezone: Mars/Olympus\n",
		"fast ma not below slow": minimal + "features:\n  fast_ma: 21\n",
		"bad yaml":               "feed: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseAcceptsPostgresWithDSN(t *testing.T) {
	c, err := Parse([]byte(minimal + `
events:
  backend: postgres
postgres:
  dsn: postgres://oracle@localhost/oracle
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Events.Backend)
	assert.Equal(t, 5*time.Second, c.Postgres.Timeout)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	t.Setenv("EVENTS_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://oracle@db/oracle")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("OPTION_TOKENS", "43210,43211")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Events.Backend)
	assert.Equal(t, "postgres://oracle@db/oracle", c.Postgres.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache:6379", c.Redis.Addr)
	assert.Equal(t, []string{"43210", "43211"}, c.Feed.OptionTokens)
}

func TestLoadWithEnvValidatesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))
	t.Setenv("ORACLE_MODE", "live")

	_, err := LoadWithEnv(path)
	assert.ErrorContains(t, err, "broker.base_url")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestSampleConfigLoads(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "paper", c.Mode)
	assert.Equal(t, 500000.0, c.Broker.PaperMargin)
	assert.Equal(t, 0.5, c.Strategy.StopMomentumFactor)
	assert.Equal(t, 21, c.Features.SlowMA)
}
