// Command foundry-server serves the protocol review workflow over
// HTTP with Prometheus metrics and optional stdout tracing.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/cerina/foundry-go/foundry"
	"github.com/cerina/foundry-go/server"
	"github.com/cerina/foundry-go/workflow"
	"github.com/cerina/foundry-go/workflow/emit"
	"github.com/cerina/foundry-go/workflow/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	_ = godotenv.Load()
	cfg := foundry.ConfigFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chat, err := foundry.NewChatModel(ctx, cfg)
	if err != nil {
		return err
	}

	st, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	emitter, shutdownTracing, err := newEmitter(ctx, log)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	reg := prometheus.NewRegistry()
	metrics := workflow.NewMetrics(reg)

	f, err := foundry.New(chat, foundry.NewAlerter(cfg), st, emitter, metrics)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.New(f, log, reg).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // LLM round trips dominate request latency
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("provider", cfg.Provider))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newStore selects MySQL when a DSN is configured, SQLite otherwise.
func newStore(cfg foundry.Config) (store.Store[foundry.ProtocolState], func(), error) {
	if cfg.MySQLDSN != "" {
		st, err := store.NewMySQLStore[foundry.ProtocolState](cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	}

	st, err := store.NewSQLiteStore[foundry.ProtocolState](cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}

// newEmitter wires workflow events into OpenTelemetry spans when
// FOUNDRY_TRACE_STDOUT is set, logging them as JSONL otherwise.
func newEmitter(ctx context.Context, log *zap.Logger) (emit.Emitter, func(), error) {
	if os.Getenv("FOUNDRY_TRACE_STDOUT") == "" {
		return emit.NewLogEmitter(os.Stderr, true), func() {}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	return emit.NewOTelEmitter(tp.Tracer("foundry")), shutdown, nil
}
