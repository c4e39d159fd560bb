package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"fieldkey/internal/offline"
	batchstore "fieldkey/internal/offline/store/batch"
	"fieldkey/internal/params"
	"fieldkey/internal/platform/config"
	"fieldkey/internal/platform/httpserver"
	"fieldkey/internal/platform/logger"
	"fieldkey/internal/platform/metrics"
	platformredis "fieldkey/internal/platform/redis"
	"fieldkey/internal/round"
	"fieldkey/internal/territory"
	tokensvc "fieldkey/internal/token/service"
	"fieldkey/internal/token/signer"
	"fieldkey/internal/token/store/assignment"
	"fieldkey/internal/token/store/capability"
	"fieldkey/internal/token/sweeper"
	httptransport "fieldkey/internal/transport/http"
	"fieldkey/internal/visit"
)

// main wires the stores, services, HTTP transport, and the background
// sweeper, then runs them under one errgroup until a shutdown signal.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Error("could not open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Error("could not reach postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("could not connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var roundStore round.Store = round.NewPostgres(db)
	if redisClient != nil {
		roundStore = round.NewRedisCache(roundStore, redisClient.Client, config.RoundInfoCacheTTL)
	}

	tokens := capability.NewPostgres(db)
	assignments := assignment.NewPostgres(db)
	tx := newPostgresTx(db)

	tokenService := tokensvc.New(log, m,
		tokens, assignments,
		round.NewService(roundStore),
		params.NewPostgres(db),
		signer.New(cfg.SigningKey, "fieldkey"),
		tx)
	offlineService := offline.New(log, m,
		tokenService,
		territory.NewPostgres(db),
		visit.NewPostgres(db),
		batchstore.NewPostgres(db))
	sweep := sweeper.New(log, m, tokens, assignments, tx, cfg.SweepInterval)

	health := []httptransport.HealthChecker{db.Ping}
	if redisClient != nil {
		health = append(health, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}

	router := httptransport.NewRouter(log, health,
		httptransport.NewTokenHandler(log, tokenService),
		httptransport.NewOfflineHandler(log, offlineService))
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweep.Run(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
