// Package main wires together the jobscout scheduler service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"jobscout/internal/api"
	"jobscout/internal/clock/system"
	"jobscout/internal/config"
	"jobscout/internal/credentials"
	httpenrich "jobscout/internal/enrich/httpapi"
	"jobscout/internal/forwarder"
	idgen "jobscout/internal/id/uuid"
	"jobscout/internal/lead"
	"jobscout/internal/logging"
	"jobscout/internal/metrics"
	"jobscout/internal/poller"
	"jobscout/internal/policy/ratelimit"
	"jobscout/internal/recovery"
	"jobscout/internal/scheduler"
	"jobscout/internal/settings"
	"jobscout/internal/sink/webhook"
	restsource "jobscout/internal/source/rest"
	"jobscout/internal/storage/memory"
	"jobscout/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Optional; absence of a .env file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

type stores struct {
	jobs     lead.JobStore
	buckets  lead.BucketStore
	creds    lead.CredentialStore
	settings lead.SettingsStore
	close    func()
}

func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	switch cfg.Storage.Provider {
	case "postgres":
		logger.Info("connecting to postgres")
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return stores{}, fmt.Errorf("init postgres: %w", err)
		}
		return stores{
			jobs:     postgres.NewJobStore(pool),
			buckets:  postgres.NewBucketStore(pool),
			creds:    postgres.NewCredentialStore(pool),
			settings: postgres.NewSettingsStore(pool),
			close:    pool.Close,
		}, nil
	case "memory":
		logger.Info("using in-memory storage, state will not survive restarts")
		return stores{
			jobs:     memory.NewJobStore(),
			buckets:  memory.NewBucketStore(),
			creds:    memory.NewCredentialStore(),
			settings: memory.NewSettingsStore(nil),
			close:    func() {},
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clk := system.New()
	ids := idgen.New()

	st, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	settingsMgr := settings.NewManager(st.settings, clk, logger.Named("settings"))
	if err := settingsMgr.Refresh(ctx); err != nil {
		// Defaults carry the service until the store becomes reachable.
		logger.Warn("initial settings refresh failed, starting with defaults", zap.Error(err))
	}

	// Repair state left by an unclean shutdown before any loop starts.
	if err := recovery.Requeue(ctx, st.jobs, logger.Named("recovery")); err != nil {
		return err
	}

	limiter := ratelimit.New(st.buckets, settingsMgr, clk, logger.Named("ratelimit"))

	oauthClient := credentials.NewOAuthClient(
		cfg.Credentials.TokenURL,
		cfg.Credentials.ClientID,
		cfg.Credentials.ClientSecret,
		clk,
	)
	credProvider := credentials.NewProvider(st.creds, oauthClient, cfg.Credentials.Principal, clk, logger.Named("credentials"))
	refresher := credentials.NewRefresher(st.creds, oauthClient, settingsMgr, clk, credentials.RefresherConfig{
		Interval: time.Duration(cfg.Credentials.IntervalSeconds) * time.Second,
	}, logger.Named("credentials"))

	enricher := httpenrich.New(cfg.Enrichment.URL, time.Duration(cfg.Enrichment.TimeoutSeconds)*time.Second)

	processor := scheduler.New(
		st.jobs,
		limiter,
		settingsMgr,
		credProvider,
		enricher,
		scheduler.NewIntervalPolicy(),
		clk,
		scheduler.Config{
			SettingsRefreshEvery: cfg.SettingsRefreshEvery(),
			PausedWait:           time.Duration(cfg.Scheduler.PausedSeconds) * time.Second,
			IdleWait:             time.Duration(cfg.Scheduler.IdleSeconds) * time.Second,
			RateLimitedWait:      time.Duration(cfg.Scheduler.RateLimitedSeconds) * time.Second,
			RetryWait:            time.Duration(cfg.Scheduler.RetrySeconds) * time.Second,
		},
		logger.Named("processor"),
	)

	var sourceRefs []poller.SourceRef
	for _, sc := range cfg.Sources {
		sourceRefs = append(sourceRefs, poller.SourceRef{
			ID:     sc.ID,
			Source: restsource.New(sc.URL, sc.APIKey),
		})
	}
	ingest := poller.New(sourceRefs, st.jobs, settingsMgr, ids, clk, poller.Config{
		CacheTTL: time.Duration(cfg.Poller.CacheTTLSeconds) * time.Second,
	}, logger.Named("poller"))

	sink := webhook.New(cfg.Sink.URL, cfg.Sink.Token, time.Duration(cfg.Sink.TimeoutSeconds)*time.Second)
	dispatch := forwarder.New(st.jobs, sink, settingsMgr, clk, forwarder.Config{
		Interval: time.Duration(cfg.Forwarder.IntervalSeconds) * time.Second,
		CallGap:  time.Duration(cfg.Forwarder.CallGapSeconds) * time.Second,
		BatchMax: cfg.Forwarder.DispatchBatchMax,
	}, logger.Named("forwarder"))

	server := api.NewServer(st.jobs, ingest, st.settings, settingsMgr, ids, clk, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	runLoop := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("loop started", zap.String("loop", name))
			fn(ctx)
			logger.Info("loop stopped", zap.String("loop", name))
		}()
	}
	runLoop("processor", processor.Run)
	runLoop("poller", ingest.Run)
	runLoop("forwarder", dispatch.Run)
	runLoop("credential-refresher", refresher.Run)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested, letting in-flight cycles finish")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}

	wg.Wait()
	return nil
}
