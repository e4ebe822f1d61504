// Command hanalign is the Korean lyric forced-alignment worker daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sorilab/hanalign/internal/config"
	"github.com/sorilab/hanalign/internal/health"
	"github.com/sorilab/hanalign/internal/observe"
	"github.com/sorilab/hanalign/internal/resilience"
	"github.com/sorilab/hanalign/internal/server"
	"github.com/sorilab/hanalign/internal/service"
	"github.com/sorilab/hanalign/internal/store/postgres"
	"github.com/sorilab/hanalign/pkg/provider/acoustic"
	"github.com/sorilab/hanalign/pkg/provider/acoustic/sofahttp"
	"github.com/sorilab/hanalign/pkg/provider/transcriber/whispercpp"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "hanalign: config file %q not found; copy config.example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "hanalign: %v\n", err)
		}
		return 1
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("hanalign starting",
		"config", *configPath,
		"listen_addr", addr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "hanalign",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Acoustic backends ─────────────────────────────────────────────────────
	tb := cfg.Align.Timebase()

	primary, err := newBackend(cfg.Acoustic.Primary, tb.SampleRate)
	if err != nil {
		slog.Error("failed to create acoustic backend", "name", cfg.Acoustic.PrimaryName(), "err", err)
		return 1
	}
	defer primary.Close()

	var provider acoustic.Provider = primary
	if len(cfg.Acoustic.Fallbacks) > 0 {
		group := resilience.NewAcousticFallback(primary, cfg.Acoustic.PrimaryName(),
			fallbackConfig(cfg.Acoustic.Breaker, metrics))
		for _, b := range cfg.Acoustic.Fallbacks {
			backend, err := newBackend(b, tb.SampleRate)
			if err != nil {
				slog.Error("failed to create acoustic backend", "name", b.Name, "err", err)
				return 1
			}
			defer backend.Close()
			group.AddFallback(b.Name, backend)
			slog.Info("acoustic fallback registered", "name", b.Name, "base_url", b.BaseURL)
		}
		provider = group
	}

	// ── Transcriber (optional) ────────────────────────────────────────────────
	var transcr *whispercpp.Provider
	if cfg.Transcriber.ModelPath != "" {
		var opts []whispercpp.Option
		if cfg.Transcriber.Language != "" {
			opts = append(opts, whispercpp.WithLanguage(cfg.Transcriber.Language))
		}
		transcr, err = whispercpp.New(cfg.Transcriber.ModelPath, opts...)
		if err != nil {
			slog.Error("failed to load whisper model", "path", cfg.Transcriber.ModelPath, "err", err)
			return 1
		}
		defer transcr.Close()
		slog.Info("transcriber loaded", "model", cfg.Transcriber.ModelPath)
	}

	// ── Store (optional) ──────────────────────────────────────────────────────
	var jobs *postgres.Store
	if cfg.Store.PostgresDSN != "" {
		jobs, err = postgres.NewStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer jobs.Close()
		slog.Info("job store connected")
	}

	// ── Aligner service ───────────────────────────────────────────────────────
	alignOpts := []service.Option{
		service.WithTimebase(tb),
		service.WithChunking(cfg.Align.ChunkSeconds, cfg.Align.ChunkConcurrency),
	}
	if transcr != nil {
		alignOpts = append(alignOpts,
			service.WithTranscriber(transcr),
			service.WithTranscriberRate(whispercpp.SampleRate))
	}
	if jobs != nil {
		alignOpts = append(alignOpts, service.WithStore(jobs))
	}
	aligner, err := service.New(provider, alignOpts...)
	if err != nil {
		slog.Error("failed to build aligner", "err", err)
		return 1
	}

	// ── HTTP surface ──────────────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithUploadLimit(cfg.Server.MaxUploadBytes),
		server.WithAudioLimit(cfg.Server.MaxAudioSeconds),
	}
	if jobs != nil {
		srvOpts = append(srvOpts, server.WithJobs(jobs))
	}
	api := server.New(aligner, srvOpts...)

	checkers := []health.Checker{
		{Name: "acoustic", Check: primary.Ping},
	}
	if jobs != nil {
		checkers = append(checkers, health.Checker{Name: "store", Check: jobs.Ping})
	}

	mux := http.NewServeMux()
	api.Register(mux)
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg, addr)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready", "listen_addr", addr)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping")
	case err := <-errCh:
		slog.Error("http server error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// newBackend constructs one sofa inference client from its config entry. The
// sample rate must match the frame grid clips are resampled to.
func newBackend(b config.AcousticBackend, sampleRate int) (*sofahttp.Provider, error) {
	opts := []sofahttp.Option{sofahttp.WithSampleRate(sampleRate)}
	if b.TimeoutSeconds > 0 {
		opts = append(opts, sofahttp.WithTimeout(b.Timeout()))
	}
	return sofahttp.New(b.BaseURL, opts...)
}

// fallbackConfig maps the breaker section onto the resilience package and
// records every state transition as a metric.
func fallbackConfig(b config.BreakerConfig, metrics *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  b.MaxFailures,
			ResetTimeout: time.Duration(b.ResetTimeoutSeconds) * time.Second,
			HalfOpenMax:  b.HalfOpenMax,
			OnStateChange: func(name string, from, to resilience.State) {
				metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
				slog.Info("acoustic breaker state change", "breaker", name, "from", from, "to", to)
			},
		},
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, addr string) {
	acousticVal := cfg.Acoustic.PrimaryName()
	if n := len(cfg.Acoustic.Fallbacks); n > 0 {
		acousticVal = fmt.Sprintf("%s (+%d)", acousticVal, n)
	}
	transcriberVal := "(disabled)"
	if cfg.Transcriber.ModelPath != "" {
		transcriberVal = "whisper.cpp"
	}
	storeVal := "(disabled)"
	if cfg.Store.PostgresDSN != "" {
		storeVal = "postgres"
	}
	chunkVal := "(off)"
	if cfg.Align.ChunkSeconds > 0 {
		chunkVal = fmt.Sprintf("%gs windows", cfg.Align.ChunkSeconds)
	}

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║       hanalign startup summary       ║")
	fmt.Println("╠══════════════════════════════════════╣")
	printRow("Acoustic", acousticVal)
	printRow("Transcriber", transcriberVal)
	printRow("Store", storeVal)
	printRow("Chunking", chunkVal)
	printRow("Listen addr", addr)
	fmt.Println("╚══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 20 {
		value = value[:17] + "…"
	}
	fmt.Printf("║  %-12s : %-20s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
