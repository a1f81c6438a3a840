// Package main provides the tagpages CLI entrypoint.
//
// Usage:
//
//	tagpages [-j N] [--config file] [--out dir] [options]
//
// Exit codes:
//   - 0: run finished (failed pages are reported, not fatal)
//   - 1: configuration or startup error
//   - 3: run finished with failed pages and --strict was given
//   - 130: interrupted
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/Sternrassler/tagpages/pkg/config"
	"github.com/Sternrassler/tagpages/pkg/harvest"
	"github.com/Sternrassler/tagpages/pkg/logging"
	"github.com/Sternrassler/tagpages/pkg/metrics"
	"github.com/Sternrassler/tagpages/pkg/status"
)

// Exit codes.
const (
	exitOK          = 0
	exitStartup     = 1
	exitPartial     = 3
	exitInterrupted = 130
)

var version = "dev"

func main() {
	app := newApp(os.Stdout, os.Stderr)
	app.ExitErrHandler = exitErrHandler

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitStartup)
	}
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitStartup)
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "tagpages",
		Usage:     "Download every page of the tag listing API to disk",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     flags(),
		Action: func(c *cli.Context) error {
			return run(c, stdout, stderr)
		},
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Value: 4, Usage: "number of parallel workers"},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
		&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file with TAGPAGES_* variables"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory"},
		&cli.IntFlag{Name: "pages", Usage: "total number of pages"},
		&cli.StringFlag{Name: "base-url", Usage: "listing endpoint"},
		&cli.StringFlag{Name: "api-key", Usage: "API key query parameter"},
		&cli.StringFlag{Name: "user-id", Usage: "user id query parameter"},
		&cli.DurationFlag{Name: "retry-delay", Usage: "delay before the single retry"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.BoolFlag{Name: "pretty", Usage: "human-readable logs"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "serve /metrics and /health on this address"},
		&cli.StringFlag{Name: "redis-addr", Usage: "publish run status to this Redis"},
		&cli.BoolFlag{Name: "no-color", Usage: "disable colored output"},
		&cli.BoolFlag{Name: "strict", Usage: "exit with status 3 if any page failed"},
	}
}

// loadConfig resolves defaults < file < .env/environment < flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return cfg, err
		}
	}

	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return cfg, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return cfg, err
	}

	if c.IsSet("jobs") {
		cfg.Workers = c.Int("jobs")
	}
	if c.IsSet("pages") {
		cfg.TotalPages = c.Int("pages")
	}
	if c.IsSet("retry-delay") {
		cfg.RetryDelay = c.Duration("retry-delay")
	}
	if c.IsSet("pretty") {
		cfg.LogPretty = c.Bool("pretty")
	}
	if c.IsSet("no-color") {
		cfg.NoColor = c.Bool("no-color")
	}
	strs := []struct {
		flag string
		dst  *string
	}{
		{"out", &cfg.OutputDir},
		{"base-url", &cfg.BaseURL},
		{"api-key", &cfg.APIKey},
		{"user-id", &cfg.UserID},
		{"log-level", &cfg.LogLevel},
		{"metrics-addr", &cfg.MetricsAddr},
		{"redis-addr", &cfg.RedisAddr},
	}
	for _, s := range strs {
		if c.IsSet(s.flag) {
			*s.dst = c.String(s.flag)
		}
	}

	return cfg, cfg.Validate()
}

func run(c *cli.Context, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitStartup)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitStartup)
	}
	logging.Setup(logging.Config{Level: level, Pretty: cfg.LogPretty, Output: stderr})
	logger := logging.NewLogger("cli")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []harvest.Option{
		harvest.WithOutput(stdout),
		harvest.WithLogger(logging.NewLogger("harvest")),
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, logger)
		defer shutdown()
	}

	if cfg.RedisAddr != "" {
		if pub, closeRedis := connectStatus(ctx, cfg, logger); pub != nil {
			defer closeRedis()
			opts = append(opts, harvest.WithObserver(pub))
		}
	}

	engine, err := harvest.New(cfg, opts...)
	if err != nil {
		return cli.Exit(err.Error(), exitStartup)
	}

	summary, err := engine.Run(ctx)
	if err != nil {
		if summary != nil && errors.Is(err, context.Canceled) {
			return cli.Exit("interrupted", exitInterrupted)
		}
		logger.Error().Err(err).Msg("Run aborted")
		return cli.Exit(err.Error(), exitStartup)
	}

	if summary.Partial() {
		logger.Warn().
			Int("failed", summary.Stats.Failed).
			Ints("pages", summary.FailedPages).
			Msg("Some pages failed; rerun to retry them")
		if c.Bool("strict") {
			return cli.Exit("", exitPartial)
		}
	}

	return nil
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		logger.Info().Msg("Metrics server stopped")
	}
}

// connectStatus returns a status publisher, or nil when Redis is unreachable.
func connectStatus(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*status.Publisher, func()) {
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, status publishing disabled")
		redisClient.Close()
		return nil, nil
	}

	pub := status.NewPublisher(redisClient, cfg.OutputDir, logging.NewLogger("status"))
	logger.Info().Str("key", pub.Key()).Msg("Publishing run status to Redis")
	return pub, func() { redisClient.Close() }
}
