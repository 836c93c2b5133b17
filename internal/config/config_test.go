package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/failover/internal/host"
	"github.com/dreamware/failover/internal/reconnect"
)

const sampleYAML = `
logging:
  debug: true
status:
  listen: 127.0.0.1:7610
failover:
  hosts:
    - hostname: localhost
      port: 5656
    - db-2.internal:5657
  reconnect:
    initial-delay: 100ms
    max-delay: 2s
    multiplier: 1.5
`

// TestLoadYAML verifies structured and string host entries can be mixed.
func TestLoadYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(sampleYAML)))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.True(t, cfg.Logging.Debug)
	assert.Equal(t, "127.0.0.1:7610", cfg.Status.Listen)
	require.Len(t, cfg.Failover.Hosts, 2)
	assert.Equal(t, host.Descriptor{Hostname: "localhost", Port: 5656}, cfg.Failover.Hosts[0])
	assert.Equal(t, "db-2.internal:5657", cfg.Failover.Hosts[1].Addr())
	assert.Equal(t, 100*time.Millisecond, cfg.Failover.Reconnect.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.Failover.Reconnect.MaxDelay)
	assert.Equal(t, 1.5, cfg.Failover.Reconnect.Multiplier)
}

func TestLoadRejectsBadHost(t *testing.T) {
	v := viper.New()
	v.Set("failover.hosts", []string{"a:1", "broken"})

	_, err := Load(v)
	assert.Error(t, err)
}

// TestFlagsAndEnv checks flag defaults and the environment override for hosts.
func TestFlagsAndEnv(t *testing.T) {
	t.Setenv("FAILOVER_FAILOVER_HOSTS", "a:1,b:2")
	t.Setenv("FAILOVER_STATUS_LISTEN", ":9999")

	v := viper.New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	MustViperFlags(v, flags)
	MustFailoverFlags(v, flags)
	require.NoError(t, flags.Parse([]string{"--debug", "--initial-delay=250ms", "--jitter=0.2"}))
	require.NoError(t, SetupViper(v, ""))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.True(t, cfg.Logging.Debug)
	assert.False(t, cfg.Logging.Pretty)
	assert.Equal(t, ":9999", cfg.Status.Listen)
	require.Len(t, cfg.Failover.Hosts, 2)
	assert.Equal(t, "a:1", cfg.Failover.Hosts[0].Addr())
	assert.Equal(t, "b:2", cfg.Failover.Hosts[1].Addr())

	rc := cfg.Failover.Reconnect
	assert.Equal(t, 250*time.Millisecond, rc.InitialDelay)
	assert.Equal(t, reconnect.DefaultMaxDelay, rc.MaxDelay)
	assert.Equal(t, reconnect.DefaultMultiplier, rc.Multiplier)
	assert.Equal(t, 0.2, rc.RandomizationFactor)
	assert.Nil(t, rc.OnConnect)
}

func TestSetupViperConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failover.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	v := viper.New()
	require.NoError(t, SetupViper(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Len(t, cfg.Failover.Hosts, 2)

	assert.Error(t, SetupViper(viper.New(), filepath.Join(dir, "missing.yaml")))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Debug: true, Pretty: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1), "debug level enabled")

	logger, err = NewLogger(LoggingConfig{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}
