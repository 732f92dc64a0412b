package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"rehla/internal/advisory"
	advisoryhandler "rehla/internal/advisory/handler"
	advisorykafka "rehla/internal/advisory/kafka"
	advisorystore "rehla/internal/advisory/store"
	"rehla/internal/auth"
	authhandler "rehla/internal/auth/handler"
	sessionstore "rehla/internal/auth/store/session"
	"rehla/internal/cms"
	"rehla/internal/platform/config"
	"rehla/internal/platform/httpserver"
	"rehla/internal/platform/logger"
	"rehla/internal/platform/metrics"
	"rehla/internal/platform/redis"
	ratelimit "rehla/internal/ratelimit/middleware"
	rlmodels "rehla/internal/ratelimit/models"
	"rehla/internal/ratelimit/store/bucket"
	"rehla/internal/serial"
	httptransport "rehla/internal/transport/http"
	"rehla/internal/tree/cache"
	treehandler "rehla/internal/tree/handler"
	treeservice "rehla/internal/tree/service"
)

func main() {
	cfg, err := config.Load(os.Getenv("REHLA_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// infra holds the optional backing services and how to release them.
type infra struct {
	redis  *redis.Client
	db     *sql.DB
	kafka  *kgo.Client
	health map[string]httptransport.HealthChecker
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("close postgres", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{health: map[string]httptransport.HealthChecker{}}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		in.health["redis"] = rc
		log.Info("redis connected")
	}

	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			in.close(log)
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			in.close(log)
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		in.db = db
		in.health["postgres"] = httptransport.HealthCheckFunc(db.PingContext)
		log.Info("postgres connected")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kc, err := advisorykafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			in.close(log)
			return nil, err
		}
		in.kafka = kc
		if err := advisorykafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic); err != nil {
			log.Warn("kafka topic not ensured", "topic", cfg.Kafka.Topic, "error", err)
		}
		in.health["kafka"] = httptransport.HealthCheckFunc(kc.Ping)
		log.Info("kafka producer ready", "topic", cfg.Kafka.Topic)
	}
	return in, nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	g, gctx := errgroup.WithContext(ctx)

	// Advisory pipeline.
	var advisories advisory.Store = advisorystore.NewInMemory(0)
	if in.db != nil {
		pg := advisorystore.NewPostgres(in.db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		advisories = pg
	}
	sinks := []advisory.Sink{advisory.NewLogSink(log), advisory.NewStoreSink(advisories)}
	if in.kafka != nil {
		sinks = append(sinks, advisorykafka.NewSink(in.kafka, cfg.Kafka.Topic))
	}
	publisher := advisory.NewPublisher(cfg.Advisory.BufferSize, log, m)
	worker := advisory.NewWorker(publisher.Events(), log, m, sinks...)
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	extractor := serial.NewExtractor(cfg.Resolver.ExpectedDomain, log,
		serial.WithMetrics(m),
		serial.WithObserver(publisher),
	)

	// CMS, caches, rate limiting.
	cmsClient, err := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Timeout, cms.WithMetrics(m))
	if err != nil {
		return err
	}

	treeOpts := []treeservice.Option{treeservice.WithMetrics(m)}
	fallbackBuckets := bucket.NewInMemory()
	g.Go(func() error {
		fallbackBuckets.Run(gctx, time.Minute)
		return nil
	})
	var limiterOpts []ratelimit.Option
	var primaryBuckets ratelimit.Store = fallbackBuckets
	if in.redis != nil {
		treeOpts = append(treeOpts, treeservice.WithCache(cache.NewRedis(in.redis, cfg.Cache.TTL)))
		primaryBuckets = bucket.NewRedis(in.redis)
		limiterOpts = append(limiterOpts, ratelimit.WithFallback(fallbackBuckets))
	} else {
		profiles := cache.NewInMemory(cfg.Cache.TTL)
		g.Go(func() error {
			profiles.Run(gctx, time.Minute)
			return nil
		})
		treeOpts = append(treeOpts, treeservice.WithCache(profiles))
	}
	limiter := ratelimit.New(primaryBuckets, log, append(limiterOpts,
		ratelimit.WithLimits(rlmodels.LimitsFromConfig(cfg.RateLimit)),
		ratelimit.WithMetrics(m),
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
	)...)

	// Login is a stateless proxy; the session is returned to the caller.
	manager := auth.NewManager(cmsClient, sessionstore.NewInMemory(), log)
	validator := auth.NewValidator(cfg.CMS.JWTSecret)
	if cfg.CMS.JWTSecret == "" {
		log.Warn("CMS_JWT_SECRET not set, admin routes will reject every token")
	}

	trees := treeservice.New(cmsClient, extractor, log, treeOpts...)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Gatherer: reg,
		Health:   in.health,
		Handlers: []httptransport.Registrar{
			treehandler.New(trees, treeservice.NewBinder(extractor), log, m, validator,
				treehandler.WithRateLimiter(limiter)),
			authhandler.New(manager, log, m, authhandler.WithRateLimiter(limiter)),
			advisoryhandler.New(advisories, log, m, validator,
				advisoryhandler.WithRateLimiter(limiter)),
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error {
		log.Info("starting rehla server", "addr", cfg.Server.Addr, "expected_domain", cfg.Resolver.ExpectedDomain)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
