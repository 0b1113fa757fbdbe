package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"maelstrom-counter/go-node/internal/config"
	"maelstrom-counter/go-node/internal/linestream"
	"maelstrom-counter/go-node/internal/metrics"
	"maelstrom-counter/go-node/internal/platform/logging"
	"maelstrom-counter/go-node/internal/platform/ratelimiter"
	"maelstrom-counter/go-node/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute parses args, loads configuration and serves stdin until it closes.
// Logs and diagnostics go to stderr; stdout carries protocol lines only.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("counter-node", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "Path to counter-node.yaml (optional)")
	logLevel := fs.String("log-level", "", "Log level override: debug | info | warn | error")
	logFormat := fs.String("log-format", "", "Log format override: text | json")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus listen address, empty disables")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		_, _ = fmt.Fprintf(stderr, "counter-node version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return 0
	}

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "counter-node: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	logger, err := logging.New(stderr, logging.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		MaxAttrBytes: cfg.Log.MaxAttrBytes,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "counter-node: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	logger.Info("counter-node starting", "version", version)
	if err := run(ctx, cfg, logger, stdin, stdout); err != nil {
		logger.Error("counter-node failed", "error", err)
		return 1
	}
	logger.Info("counter-node stopped")
	return 0
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	onDecode, err := session.ParseDecodeErrorPolicy(cfg.Node.OnDecodeError)
	if err != nil {
		return err
	}
	onUnknown, err := session.ParseUnknownTypePolicy(cfg.Node.OnUnknownType)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	opts := session.Options{
		OnDecodeError: onDecode,
		OnUnknownType: onUnknown,
		RequireInit:   cfg.Node.RequireInit,
		MaxReadErrors: cfg.Node.MaxReadErrors,
		CallTimeout:   cfg.Node.CallTimeout,
		Observer:      collector,
		Logger:        logger,
	}
	if limiter := ratelimiter.New(ratelimiter.Config{
		RPS:     cfg.RateLimit.RPS,
		Burst:   cfg.RateLimit.Burst,
		IdleTTL: cfg.RateLimit.IdleTTL,
	}); limiter != nil {
		opts.Limiter = limiter
		if err := metrics.RegisterLimiter(reg, limiter.Tracked); err != nil {
			return fmt.Errorf("register limiter metrics: %w", err)
		}
		logger.Info("rate limit enabled", "rps", cfg.RateLimit.RPS, "burst", cfg.RateLimit.Burst)
	}
	sess := session.New(linestream.NewWriter(out), opts)

	if err := metrics.RegisterState(reg, func() (int64, int) {
		st := sess.State()
		return st.Counter, len(st.NodeIDs)
	}); err != nil {
		return fmt.Errorf("register state metrics: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		// Input closing ends the process, so stop the metrics server too.
		defer cancel()
		return sess.Run(runCtx, linestream.NewReader(in, cfg.Node.MaxLineBytes))
	})
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, reg)
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := metrics.Serve(runCtx, srv); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Interrupted by signal.
		return nil
	}
	return err
}
