package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipc-bridge/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
gateway = "switch"
addrs = [" 10.0.0.2:31337 ", "", "10.0.0.3:31337"]
balancer = "consistent_hash"
pool_size = 2
dial_timeout = "500ms"
call_timeout = "2s"
rate_limit = 50.0
rate_burst = 5
dial_retries = 0
retry_delay = "1s"
max_reply_bytes = 1048576
log_level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, "switch", cfg.Gateway)
	assert.Equal(t, []string{"10.0.0.2:31337", "10.0.0.3:31337"}, cfg.Addrs)
	assert.Equal(t, "consistent_hash", cfg.Balancer)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, 500*time.Millisecond, cfg.DialTimeout)
	assert.Equal(t, 2*time.Second, cfg.CallTimeout)
	assert.Equal(t, 50.0, cfg.RateLimit)
	assert.Equal(t, 5, cfg.RateBurst)
	assert.Equal(t, 0, cfg.DialRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, int64(1048576), cfg.MaxReplyBytes)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvAddrs, "1.2.3.4:1, 5.6.7.8:2")
	t.Setenv(EnvEtcdEndpoints, "127.0.0.1:2379")

	cfg, err := Load(writeConfig(t, `addrs = ["9.9.9.9:9"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.4:1", "5.6.7.8:2"}, cfg.Addrs)
	assert.Equal(t, []string{"127.0.0.1:2379"}, cfg.EtcdEndpoints)
}

func TestLoadEnvLogLevel(t *testing.T) {
	t.Setenv(logging.EnvLogLevel, " debug ")

	cfg, err := Load(writeConfig(t, `log_level = "info"`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv(logging.EnvLogLevel, "loud")
	_, err = Load(writeConfig(t, `log_level = "info"`))
	assert.ErrorContains(t, err, "log_level")
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"bad duration":  `dial_timeout = "soon"`,
		"bad balancer":  `balancer = "random"`,
		"no gateway":    `gateway = " "`,
		"no addrs":      `addrs = []`,
		"zero pool":     `pool_size = 0`,
		"negative cap":  `max_reply_bytes = -1`,
		"no burst":      "rate_limit = 1.0\nrate_burst = 0",
		"invalid toml":  `gateway = `,
		"negative wait": `retry_delay = "-1s"`,
		"bad log level": `log_level = "loud"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "config load failed")
}
