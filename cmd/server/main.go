// Command server runs the matching service: Kafka ingestion of upstream
// replicas, the periodic matching engine, the confirmation sweep and the
// gateway-facing HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"lifelink/internal/matching/client/ml"
	"lifelink/internal/matching/client/sources"
	matchingconsumer "lifelink/internal/matching/consumer"
	"lifelink/internal/matching/events"
	"lifelink/internal/matching/handler"
	"lifelink/internal/matching/metrics"
	"lifelink/internal/matching/ports"
	"lifelink/internal/matching/publisher"
	"lifelink/internal/matching/service/engine"
	"lifelink/internal/matching/service/ingest"
	"lifelink/internal/matching/service/lifecycle"
	donationstore "lifelink/internal/matching/store/donation"
	donorstore "lifelink/internal/matching/store/donor"
	hlastore "lifelink/internal/matching/store/hla"
	locationstore "lifelink/internal/matching/store/location"
	matchstore "lifelink/internal/matching/store/match"
	recipientstore "lifelink/internal/matching/store/recipient"
	requeststore "lifelink/internal/matching/store/request"
	"lifelink/internal/platform/config"
	"lifelink/internal/platform/httpserver"
	kafkaadmin "lifelink/internal/platform/kafka/admin"
	kafkaconsumer "lifelink/internal/platform/kafka/consumer"
	kafkaproducer "lifelink/internal/platform/kafka/producer"
	"lifelink/internal/platform/logger"
	"lifelink/internal/platform/postgres"
	"lifelink/internal/platform/redis"
	"lifelink/pkg/platform/middleware/identity"
)

func main() {
	if err := run(); err != nil {
		slog.Error("matching service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	rdb, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Replica stores are rebuilt from the event stream, so they stay in
	// memory. Donations, requests and matches survive restarts when
	// Postgres is configured.
	var (
		donations ports.DonationStore = donationstore.NewInMemoryStore()
		requests  ports.RequestStore  = requeststore.NewInMemoryStore()
		matches   ports.MatchStore    = matchstore.NewInMemoryStore()
	)
	if db != nil {
		donations = donationstore.NewPostgres(db)
		requests = requeststore.NewPostgres(db)
		matches = matchstore.NewPostgres(db)
	}
	donors := donorstore.NewInMemoryStore()
	recipients := recipientstore.NewInMemoryStore()
	locations := locationstore.NewInMemoryStore()
	hlaProfiles := hlastore.NewInMemoryStore()

	topics := append(events.AllInbound(), events.TopicMatchFound)
	if err := kafkaadmin.EnsureTopics(ctx, cfg.KafkaBrokers, topics...); err != nil {
		log.Warn("topic creation failed, relying on broker auto-create", "error", err)
	}

	prod, err := kafkaproducer.New(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer prod.Close()

	pub, err := publisher.New(prod)
	if err != nil {
		return err
	}

	ingestSvc, err := ingest.New(ingest.Stores{
		Donors:     donors,
		Recipients: recipients,
		Locations:  locations,
		HLA:        hlaProfiles,
		Donations:  donations,
		Requests:   requests,
		Matches:    matches,
	}, ingest.WithLogger(log), ingest.WithMetrics(m))
	if err != nil {
		return err
	}

	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithInterval(cfg.EngineInterval),
		engine.WithBatchLimits(cfg.TopN, cfg.Threshold),
	}
	if cfg.MLEnabled {
		engineOpts = append(engineOpts, engine.WithScorer(ml.New(cfg.MLServiceURL)))
	}
	if cfg.FallbackEnabled {
		engineOpts = append(engineOpts, engine.WithFallback(engine.NewRuleScorer()))
	}
	engineSvc, err := engine.New(engine.Stores{
		Donations:  donations,
		Requests:   requests,
		Donors:     donors,
		Recipients: recipients,
		Locations:  locations,
		HLA:        hlaProfiles,
		Matches:    matches,
	}, pub, engineOpts...)
	if err != nil {
		return err
	}

	lifecycleSvc, err := lifecycle.New(matches, donations, requests, locations, pub,
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(m),
		lifecycle.WithNotifier(sources.New(cfg.DonorServiceURL, cfg.RecipientServiceURL)),
		lifecycle.WithSweepInterval(cfg.SweepInterval),
		lifecycle.WithConfirmationTTL(cfg.ConfirmationTTL),
	)
	if err != nil {
		return err
	}

	eventRouter := matchingconsumer.NewRouter(ingestSvc, m, log)
	var rc *goredis.Client
	if rdb != nil {
		rc = rdb.Client
	}
	dedup := kafkaconsumer.NewDedup(eventRouter, rc, cfg.KafkaGroup, 24*time.Hour, log)
	cons, err := kafkaconsumer.New(cfg.KafkaBrokers, cfg.KafkaGroup, eventRouter.Topics(), dedup, log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(identity.FromHeaders)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	handler.New(lifecycleSvc, log).Register(r)

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cons.Run(gctx) })
	g.Go(func() error { return engineSvc.Run(gctx) })
	g.Go(func() error { return lifecycleSvc.RunSweep(gctx) })
	g.Go(func() error {
		log.Info("matching service listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("matching service stopped")
	return nil
}
