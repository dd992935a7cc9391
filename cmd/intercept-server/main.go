package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/intercept-engine/core"
	"github.com/signalsfoundry/intercept-engine/internal/config"
	"github.com/signalsfoundry/intercept-engine/internal/feed"
	"github.com/signalsfoundry/intercept-engine/internal/logging"
	"github.com/signalsfoundry/intercept-engine/internal/observability"
	"github.com/signalsfoundry/intercept-engine/internal/runloop"
	"github.com/signalsfoundry/intercept-engine/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML/JSON/TOML scenario config; empty uses the built-in mission")
	grpcAddr := flag.String("grpc-addr", "", "TCP address for the frame feed gRPC server (overrides server.grpc_addr)")
	httpAddr := flag.String("http-addr", "", "HTTP address for /v1, /metrics and /healthz (overrides server.http_addr)")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(ctx, "failed to load config", logging.String("path", *configPath), logging.Err(err))
		os.Exit(1)
	}
	if *grpcAddr != "" {
		cfg.Server.GRPCAddr = *grpcAddr
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}

	logCfg := cfg.LoggerConfig()
	logCfg.AddSource = true
	log := logging.New(logCfg)

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log); err != nil {
		log.Error(ctx, "intercept server failed", logging.Err(err))
		os.Exit(1)
	}
}

// app is the assembled process: engine loop plus its two network surfaces.
type app struct {
	runner *runloop.Runner
	grpc   *grpc.Server
	http   *http.Server
	hub    *feed.Hub
}

func newApp(cfg *config.Config, log logging.Logger, reg *prometheus.Registry) (*app, error) {
	feedMetrics, err := observability.NewFeedCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("feed metrics: %w", err)
	}
	engineMetrics, err := observability.NewEngineCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("engine metrics: %w", err)
	}

	engine, err := core.NewEngine(cfg.Scenario(),
		core.WithLogger(log.With(logging.String("component", "engine"))),
		core.WithRecorder(engineMetrics),
	)
	if err != nil {
		return nil, err
	}

	hub := feed.NewHub()
	tc := timectrl.NewTimeController(cfg.Clock.Tick, cfg.Mode())
	runner := runloop.NewRunner(engine, hub, tc, runloop.WithLogger(log.With(logging.String("component", "runloop"))))
	svc := feed.NewService(hub, runner, log)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			feed.RequestIDUnaryServerInterceptor(log),
			feed.TracingUnaryServerInterceptor(),
			feedMetrics.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			feed.RequestIDStreamServerInterceptor(log),
			feed.TracingStreamServerInterceptor(),
			feedMetrics.StreamServerInterceptor(),
		),
	)
	feed.RegisterFrameFeedServer(server, svc)

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           feed.NewHTTPHandler(svc, feedMetrics.Handler(), feedMetrics, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &app{runner: runner, grpc: server, http: httpSrv, hub: hub}, nil
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	tracingShutdown, err := observability.InitTracing(ctx, cfg.TracingSettings(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), tracingShutdown, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(cfg, log, reg)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	log.Info(ctx, "starting frame feed gRPC server", logging.String("addr", cfg.Server.GRPCAddr))
	go func() {
		if err := a.grpc.Serve(lis); err != nil {
			log.Error(ctx, "gRPC server exited", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving HTTP", logging.String("addr", cfg.Server.HTTPAddr))
	go func() {
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "HTTP server exited", logging.Err(err))
		}
	}()

	// Run returns once ctx is cancelled; it closes the hub, which ends every
	// WatchFrames stream so GracefulStop does not wait on them.
	if err := a.runner.Run(ctx, 0); err != nil {
		return err
	}

	log.Info(context.Background(), "shutting down intercept server")
	a.grpc.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "HTTP shutdown failed", logging.Err(err))
	}
	return nil
}
