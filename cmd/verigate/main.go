package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/layer-3/verigate/adapters/codec"
	"github.com/layer-3/verigate/adapters/events"
	"github.com/layer-3/verigate/adapters/scheduler"
	"github.com/layer-3/verigate/adapters/selector"
	"github.com/layer-3/verigate/adapters/store"
	"github.com/layer-3/verigate/adapters/verifyclient"
	"github.com/layer-3/verigate/config"
	"github.com/layer-3/verigate/internal/logx"
	"github.com/layer-3/verigate/service"
	"github.com/layer-3/verigate/transport/http"
	"github.com/layer-3/verigate/widget"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:     "verigate",
		Usage:    "Human verification widget host and token verifier",
		Commands: []*cli.Command{serveCommand()},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("verigate failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Flags: config.Flags(),
		Action: func(c *cli.Context) error {
			cfg, err := config.FromContext(c)
			if err != nil {
				return err
			}
			return serve(c.Context, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := logx.Setup(os.Stdout, level)
	if cfg.Secret == config.DefaultSecret {
		slog.Warn("serving with the default token secret, set VERIGATE_SECRET")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokenCodec, err := codec.New(codec.Kind(cfg.Codec), cfg.Secret)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := newPublisher(ctx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer closePublisher()
	eventPub := events.NewWatermillPublisher(publisher)

	sites := config.NewRegistry()
	if cfg.SitesFile != "" {
		if sites, err = config.LoadRegistry(cfg.SitesFile); err != nil {
			return err
		}
		if err := sites.Watch(ctx); err != nil {
			return err
		}
		slog.Info("sites loaded", "path", cfg.SitesFile, "sites", sites.Len())
	}

	sessions := store.NewMemoryStore()
	timers := scheduler.New()

	engineCfg := service.DefaultEngineConfig()
	engineCfg.ClickCooldown = cfg.ClickCooldown
	engine := service.NewEngine(
		sessions,
		service.NewIssuer(tokenCodec, nil),
		selector.New(),
		timers,
		eventPub,
		engineCfg,
	)

	widgets := widget.NewController(engine, sessions, sites, timers, widget.NewMemoryRenderer(),
		widget.WithRemoteVerifier(verifyclient.New(verifyURL(cfg), nil)),
		widget.WithTiming(widgetTiming(cfg)),
	)

	verifier := service.NewVerifier(tokenCodec,
		service.WithMaxAge(cfg.TokenMaxAge),
		service.WithFutureSkew(cfg.FutureSkew),
	)

	gin.SetMode(gin.ReleaseMode)
	router := http.SetupRouter(
		http.NewHandlers(verifier, sites, eventPub),
		http.NewWidgetHandlers(widgets),
	)

	srv := &nethttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("verigate listening", "addr", cfg.Addr, "codec", cfg.Codec, "redis", cfg.RedisURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// widgetTiming expires solved widgets together with the tokens they hold
func widgetTiming(cfg config.Config) widget.Timing {
	timing := widget.DefaultTiming()
	timing.StartDelay = cfg.StartDelay
	if cfg.TokenMaxAge > 0 {
		timing.TokenLifetime = cfg.TokenMaxAge
	}
	return timing
}

// newPublisher publishes to redis streams when redisURL is set, otherwise to an in-process channel
// whose events are written to the log
func newPublisher(ctx context.Context, redisURL string, logger *slog.Logger) (message.Publisher, func(), error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if redisURL == "" {
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		if err := events.Audit(ctx, pubSub, logger); err != nil {
			_ = pubSub.Close()
			return nil, nil, err
		}
		return pubSub, func() { _ = pubSub.Close() }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		wmLogger,
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	return publisher, func() {
		_ = publisher.Close()
		_ = client.Close()
	}, nil
}

// verifyURL is the endpoint auto-redirect widgets verify against, this server unless configured
func verifyURL(cfg config.Config) string {
	if cfg.VerifyURL != "" {
		return cfg.VerifyURL
	}
	host := cfg.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/verify"
}
