package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func testConfig() *Config {
	return &Config{
		bind:            "127.0.0.1",
		port:            8080,
		playerTimeout:   time.Minute,
		sessionTimeout:  time.Hour,
		rateLimit:       100,
		maxHold:         time.Minute,
		tick:            10 * time.Millisecond,
		warnBefore:      []time.Duration{10 * time.Second},
		maxPlayers:      4,
		returnToThrower: true,
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "--tls-key"},
		{"port too low", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 65536 }, "invalid port"},
		{"zero max hold", func(c *Config) { c.maxHold = 0; c.warnBefore = nil }, "invalid max hold"},
		{"zero tick", func(c *Config) { c.tick = 0 }, "invalid tick"},
		{"tick above max hold", func(c *Config) { c.tick = 2 * time.Minute }, "must not exceed --max-hold"},
		{"warning at deadline", func(c *Config) { c.warnBefore = []time.Duration{time.Minute} }, "invalid warning"},
		{"zero warning", func(c *Config) { c.warnBefore = []time.Duration{0} }, "invalid warning"},
		{"negative flight", func(c *Config) { c.flightTime = -time.Second }, "invalid flight time"},
		{"one player", func(c *Config) { c.maxPlayers = 1 }, "invalid max players"},
		{"no rate", func(c *Config) { c.rateLimit = 0 }, "invalid rate limit"},
	}

	require.NoError(t, testConfig().validate())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestConfig_ValidateReportsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.port = 0
	cfg.maxPlayers = 0
	cfg.rateLimit = -1

	assert.Len(t, multierr.Errors(cfg.validate()), 3)
}

func TestConfig_Scheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestConfig_Options(t *testing.T) {
	cfg := testConfig()
	cfg.flightTime = 2 * time.Second

	opts := cfg.options(nil)
	assert.Equal(t, time.Minute, opts.MaxHold)
	assert.Equal(t, 10*time.Millisecond, opts.Tick)
	assert.Equal(t, []time.Duration{10 * time.Second}, opts.WarnBefore)
	assert.Equal(t, 2*time.Second, opts.FlightTime)
	assert.Equal(t, 4, opts.MaxPlayers)
	assert.True(t, opts.ReturnToThrower)
}

func TestNewCmd_Defaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))
	require.NoError(t, cmd.PreRunE(cmd, nil))

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 5*time.Minute, cfg.maxHold)
	assert.Equal(t, time.Second, cfg.tick)
	assert.Equal(t, []time.Duration{30 * time.Second}, cfg.warnBefore)
	assert.Equal(t, 10, cfg.maxPlayers)
	assert.True(t, cfg.returnToThrower)
	assert.NoError(t, cfg.validate())
}

func TestNewCmd_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("HOTPOTATO_MAX_PLAYERS", "6")
	t.Setenv("HOTPOTATO_WARN_BEFORE", "20s,5s")
	t.Setenv("HOTPOTATO_PORT", "9000")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9100"}))
	require.NoError(t, cmd.PreRunE(cmd, nil))

	assert.Equal(t, 6, cfg.maxPlayers)
	assert.Equal(t, []time.Duration{20 * time.Second, 5 * time.Second}, cfg.warnBefore)
	assert.Equal(t, 9100, cfg.port, "flags win over the environment")
}

func TestNewCmd_LoadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotpotato.env")
	require.NoError(t, os.WriteFile(path, []byte("HOTPOTATO_FLIGHT_TIME=3s\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("HOTPOTATO_FLIGHT_TIME") })

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", path}))
	require.NoError(t, cmd.PreRunE(cmd, nil))

	assert.Equal(t, 3*time.Second, cfg.flightTime)
}

func TestNewCmd_MissingEnvFile(t *testing.T) {
	cmd := newCmd(&Config{})
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}))

	assert.ErrorContains(t, cmd.PreRunE(cmd, nil), "loading env file")
}

func TestNewCmd_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("HOTPOTATO_TICK", "soon")

	cmd := newCmd(&Config{})
	require.NoError(t, cmd.ParseFlags(nil))

	assert.ErrorContains(t, cmd.PreRunE(cmd, nil), "invalid value for tick")
}

func TestNewCmd_Version(t *testing.T) {
	var out bytes.Buffer
	cmd := newCmd(&Config{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "hotpotato v"+releaseVersion+"\n", out.String())
}
