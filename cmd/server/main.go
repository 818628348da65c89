package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/execution-hub/choreographer/internal/api/http"
	appExecutor "github.com/execution-hub/choreographer/internal/application/executor"
	"github.com/execution-hub/choreographer/internal/application/selector"
	"github.com/execution-hub/choreographer/internal/config"
	"github.com/execution-hub/choreographer/internal/domain/executor"
	"github.com/execution-hub/choreographer/internal/infrastructure/consensus"
	"github.com/execution-hub/choreographer/internal/infrastructure/driver"
	"github.com/execution-hub/choreographer/internal/infrastructure/memory"
	"github.com/execution-hub/choreographer/internal/infrastructure/metrics"
	"github.com/execution-hub/choreographer/internal/infrastructure/postgres"
	claimredis "github.com/execution-hub/choreographer/internal/infrastructure/redis"
	"github.com/execution-hub/choreographer/internal/infrastructure/sse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	ctx := context.Background()
	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	// directory
	var directory executor.Directory
	switch cfg.DirectoryBackend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		cleanups = append(cleanups, pool.Close)
		if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("migration error: %v", err)
		}
		directory = postgres.NewExecutorDirectory(pool)
	default:
		directory = memory.NewExecutorDirectory()
	}

	// claim registry
	var claims selector.ClaimRegistry
	var raftRPC *http.Server
	switch cfg.ClaimBackend {
	case config.BackendRedis:
		client, err := claimredis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis error: %v", err)
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		claims = claimredis.NewClaimRegistry(client, "", cfg.ClaimTTL)
	case config.BackendRaft:
		node, err := consensus.NewNode(consensus.Config{
			NodeID:    cfg.Raft.NodeID,
			RaftAddr:  cfg.Raft.Addr,
			DataDir:   cfg.Raft.DataDir,
			Bootstrap: cfg.Raft.Bootstrap,
			Peers:     cfg.Raft.Peers,
			RPCPeers:  cfg.Raft.RPCPeers,
			RPCToken:  cfg.Raft.RPCToken,
			ClaimTTL:  cfg.ClaimTTL,
		})
		if err != nil {
			log.Fatalf("raft error: %v", err)
		}
		cleanups = append(cleanups, func() { _ = node.Shutdown() })
		raftRPC = &http.Server{
			Addr:         cfg.Raft.RPCAddr,
			Handler:      node.Handler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.Raft.RPCAddr).Msg("raft rpc server started")
			if err := raftRPC.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Msg("raft rpc server failed")
			}
		}()
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		leader, err := node.WaitForLeader(waitCtx, 0)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("raft leader not elected yet")
		} else {
			logger.Info().Str("leader", leader).Bool("is_leader", node.IsLeader()).Msg("raft cluster ready")
		}
		claims = node
	default:
		claims = memory.NewClaimRegistry()
	}

	// selection
	strategy, err := selector.NewStrategy(cfg.Strategy, logger)
	if err != nil {
		log.Fatalf("strategy error: %v", err)
	}
	phase, err := selector.ParseVerifyPhase(cfg.VerifyPhase)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)
	eventHub := sse.NewHub()

	sel := selector.NewSelector(
		directory,
		driver.NewHTTPProber(cfg.ProbeTimeout, cfg.ProbeTLS),
		strategy,
		claims,
		collector,
		selector.Options{
			ProbeTimeout:     cfg.ProbeTimeout,
			ProbeConcurrency: cfg.ProbeConcurrency,
			Verifier:         selector.NewDirectoryDependencyVerifier(directory),
			VerifyPhase:      phase,
			Events:           eventHub,
		},
		logger,
	)
	executorSvc := appExecutor.NewService(directory, sel, logger)

	// API server
	apiServer := httpapi.NewServer(executorSvc, sel, collector, eventHub, cfg.APIKeyHash, logger)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.ServerAddr).
			Str("directory", cfg.DirectoryBackend).
			Str("claims", cfg.ClaimBackend).
			Str("strategy", strategy.Name()).
			Str("verify_phase", string(phase)).
			Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	eventHub.Stop()
	_ = httpServer.Shutdown(ctxShutdown)
	if raftRPC != nil {
		_ = raftRPC.Shutdown(ctxShutdown)
	}
	logger.Info().Msg("http server stopped")
}
