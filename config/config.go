// Package config holds the process configuration and the per-site registry.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

// DefaultSecret is shared with existing deployments of the legacy token format. Production setups override it.
const DefaultSecret = "verigate-secret"

// Config is the server configuration
type Config struct {
	Addr          string
	Secret        string
	Codec         string
	TokenMaxAge   time.Duration
	FutureSkew    time.Duration
	RedisURL      string
	SitesFile     string
	VerifyURL     string
	StartDelay    time.Duration
	ClickCooldown time.Duration
	LogLevel      string
}

const (
	flagAddr          = "addr"
	flagSecret        = "secret"
	flagCodec         = "codec"
	flagTokenMaxAge   = "token-max-age"
	flagFutureSkew    = "future-skew"
	flagRedisURL      = "redis-url"
	flagSitesFile     = "sites-file"
	flagVerifyURL     = "verify-url"
	flagStartDelay    = "start-delay"
	flagClickCooldown = "click-cooldown"
	flagLogLevel      = "log-level"
)

// Flags returns the command line flags of the serve command
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagAddr,
			Usage:   "HTTP listen address",
			Value:   ":8080",
			EnvVars: []string{"VERIGATE_ADDR"},
		},
		&cli.StringFlag{
			Name:    flagSecret,
			Usage:   "shared token secret",
			Value:   DefaultSecret,
			EnvVars: []string{"VERIGATE_SECRET"},
		},
		&cli.StringFlag{
			Name:    flagCodec,
			Usage:   "token format: sealed, legacy or jwt",
			Value:   "sealed",
			EnvVars: []string{"VERIGATE_CODEC"},
		},
		&cli.DurationFlag{
			Name:    flagTokenMaxAge,
			Usage:   "maximum token age accepted by /verify",
			Value:   5 * time.Minute,
			EnvVars: []string{"VERIGATE_TOKEN_MAX_AGE"},
		},
		&cli.DurationFlag{
			Name:    flagFutureSkew,
			Usage:   "tolerated clock skew for tokens issued in the future",
			Value:   30 * time.Second,
			EnvVars: []string{"VERIGATE_FUTURE_SKEW"},
		},
		&cli.StringFlag{
			Name:    flagRedisURL,
			Usage:   "publish events to redis streams instead of in process",
			EnvVars: []string{"VERIGATE_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    flagSitesFile,
			Usage:   "YAML file with per-site configuration, reloaded on change",
			EnvVars: []string{"VERIGATE_SITES_FILE"},
		},
		&cli.StringFlag{
			Name:    flagVerifyURL,
			Usage:   "verification endpoint used by auto-redirect widgets, defaults to this server",
			EnvVars: []string{"VERIGATE_VERIFY_URL"},
		},
		&cli.DurationFlag{
			Name:    flagStartDelay,
			Usage:   "delay between the checkbox click and the challenge",
			Value:   time.Second,
			EnvVars: []string{"VERIGATE_START_DELAY"},
		},
		&cli.DurationFlag{
			Name:    flagClickCooldown,
			Usage:   "submit lockout after a wrong click selection",
			Value:   1500 * time.Millisecond,
			EnvVars: []string{"VERIGATE_CLICK_COOLDOWN"},
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Usage:   "debug, info, warn or error",
			Value:   "info",
			EnvVars: []string{"VERIGATE_LOG_LEVEL"},
		},
	}
}

// FromContext reads and validates the configuration from parsed flags
func FromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		Addr:          c.String(flagAddr),
		Secret:        c.String(flagSecret),
		Codec:         c.String(flagCodec),
		TokenMaxAge:   c.Duration(flagTokenMaxAge),
		FutureSkew:    c.Duration(flagFutureSkew),
		RedisURL:      c.String(flagRedisURL),
		SitesFile:     c.String(flagSitesFile),
		VerifyURL:     c.String(flagVerifyURL),
		StartDelay:    c.Duration(flagStartDelay),
		ClickCooldown: c.Duration(flagClickCooldown),
		LogLevel:      c.String(flagLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%s is required", flagAddr)
	}
	if c.Secret == "" {
		return fmt.Errorf("%s is required", flagSecret)
	}
	if c.TokenMaxAge <= 0 {
		return fmt.Errorf("%s must be positive", flagTokenMaxAge)
	}
	if c.FutureSkew < 0 {
		return fmt.Errorf("%s must not be negative", flagFutureSkew)
	}
	if c.StartDelay < 0 || c.ClickCooldown < 0 {
		return fmt.Errorf("%s and %s must not be negative", flagStartDelay, flagClickCooldown)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", flagLogLevel, c.LogLevel, err)
	}
	return level, nil
}
