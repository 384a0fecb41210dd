package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()

	var cfg Config
	var cfgErr error
	app := &cli.App{
		Name:  "verigate",
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			cfg, cfgErr = FromContext(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"verigate"}, args...)))
	return cfg, cfgErr
}

func TestFromContext_Defaults(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DefaultSecret, cfg.Secret)
	assert.Equal(t, "sealed", cfg.Codec)
	assert.Equal(t, 5*time.Minute, cfg.TokenMaxAge)
	assert.Equal(t, 30*time.Second, cfg.FutureSkew)
	assert.Equal(t, time.Second, cfg.StartDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.ClickCooldown)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestFromContext_FlagsAndEnv(t *testing.T) {
	t.Setenv("VERIGATE_SECRET", "from-env")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := parse(t, "--codec", "jwt", "--token-max-age", "2m", "--log-level", "debug")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Secret)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "jwt", cfg.Codec)
	assert.Equal(t, 2*time.Minute, cfg.TokenMaxAge)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Addr:        ":8080",
		Secret:      "s",
		TokenMaxAge: time.Minute,
		LogLevel:    "info",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no addr", func(c *Config) { c.Addr = "" }},
		{"no secret", func(c *Config) { c.Secret = "" }},
		{"zero max age", func(c *Config) { c.TokenMaxAge = 0 }},
		{"negative skew", func(c *Config) { c.FutureSkew = -time.Second }},
		{"negative start delay", func(c *Config) { c.StartDelay = -time.Second }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
