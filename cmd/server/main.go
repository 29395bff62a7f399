package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"warden/internal/gate"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/kafka"
	"warden/internal/platform/logger"
	wardenotel "warden/internal/platform/otel"
	"warden/internal/punishment/metrics"
	"warden/internal/punishment/observability"
	"warden/internal/punishment/ports"
	"warden/internal/punishment/publisher"
	"warden/internal/punishment/service"
	auditconsumer "warden/pkg/platform/audit/consumer"
	auditmemory "warden/pkg/platform/audit/store/memory"
)

const (
	auditCapacity      = 50000
	throttlePruneEvery = time.Minute
)

// main wires the engine, its stores and listeners, and the HTTP API, then
// blocks until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "warden:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := wardenotel.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engineMetrics := metrics.New()
	engine, err := service.New(store,
		service.WithLogger(log),
		service.WithMetrics(engineMetrics),
		service.WithPollInterval(cfg.Engine.PollInterval),
		service.WithSweepTimeout(cfg.Engine.SweepTimeout),
	)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	auditStore := store.audit
	if auditStore == nil {
		auditStore = auditmemory.NewInMemoryStore(auditCapacity)
	}
	var auditSinks observability.FanOut

	var pub *publisher.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		p, closeKafka, err := openPublisher(ctx, cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer closeKafka()
		pub = p
	}

	// Workers stop before the producer closes so the publisher can flush.
	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	if pub != nil {
		engine.RegisterListener(pub)
		auditSinks = append(auditSinks, pub)
		workers.Add(1)
		go func() {
			defer workers.Done()
			_ = pub.Run(workerCtx)
		}()
	}
	// With a consumer group set, the audit store is fed from the shared topic
	// instead of locally, so it holds every server's events exactly once.
	if pub != nil && cfg.Kafka.AuditConsumerGroup != "" && cfg.Kafka.AuditTopic != "" {
		consumer, err := kafka.NewConsumer(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditConsumerGroup, []string{cfg.Kafka.AuditTopic}, log)
		if err != nil {
			return fmt.Errorf("connect audit consumer: %w", err)
		}
		defer consumer.Close()
		router := auditconsumer.NewRouter(log, nil)
		router.Register(cfg.Kafka.AuditTopic, auditconsumer.NewMaterializer(auditStore))
		workers.Add(1)
		go func() {
			defer workers.Done()
			_ = consumer.Run(workerCtx, router.Handle)
		}()
	} else {
		auditSinks = append(auditSinks, observability.NewStorePublisher(auditStore))
	}
	var auditor ports.AuditPublisher = auditSinks
	engine.RegisterListener(observability.NewAuditListener(log, auditor))

	issuer, err := service.NewIssuer(engine,
		service.WithIssuerLogger(log),
		service.WithWarnEscalation(cfg.Engine.WarnLimit, cfg.Engine.AutoIPBanReason),
	)
	if err != nil {
		return fmt.Errorf("build issuer: %w", err)
	}

	throttle := gate.NewThrottle(cfg.Gate.ThrottleMaxConnections, cfg.Gate.ThrottleWindow)
	connGate, err := gate.New(engine,
		gate.WithLogger(log),
		gate.WithMetrics(engineMetrics),
		gate.WithThrottle(throttle),
		gate.WithHiddenReason(cfg.Gate.NNRHiddenReason),
		gate.WithAuditPublisher(auditor),
	)
	if err != nil {
		return fmt.Errorf("build gate: %w", err)
	}
	workers.Add(1)
	go func() {
		defer workers.Done()
		pruneThrottle(workerCtx, throttle)
	}()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("engine close failed", "error", err)
		}
	}()

	router := newRouter(routerDeps{
		cfg:      cfg,
		logger:   log,
		engine:   engine,
		issuer:   issuer,
		gate:     connGate,
		auditLog: auditStore,
		health:   healthCheck(store),
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting warden", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func openPublisher(ctx context.Context, cfg config.Kafka, log *slog.Logger) (*publisher.Publisher, func(), error) {
	producer, err := kafka.NewProducer(ctx, cfg.Brokers)
	if err != nil {
		return nil, nil, fmt.Errorf("connect kafka: %w", err)
	}
	topics := []string{cfg.Topic}
	if cfg.AuditTopic != "" {
		topics = append(topics, cfg.AuditTopic)
	}
	if err := producer.EnsureTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, topics...); err != nil {
		producer.Close()
		return nil, nil, err
	}
	pub, err := publisher.New(producer,
		publisher.WithLogger(log),
		publisher.WithTopics(cfg.Topic, cfg.AuditTopic),
	)
	if err != nil {
		producer.Close()
		return nil, nil, err
	}
	return pub, producer.Close, nil
}

func pruneThrottle(ctx context.Context, t *gate.Throttle) {
	ticker := time.NewTicker(throttlePruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.Prune(now)
		}
	}
}
