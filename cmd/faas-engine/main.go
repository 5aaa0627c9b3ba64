package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faas-engine/internal/adapters/docker"
	"faas-engine/internal/adapters/invoker"
	"faas-engine/internal/adapters/kubernetes"
	"faas-engine/internal/adapters/lock"
	"faas-engine/internal/adapters/store"
	"faas-engine/internal/config"
	"faas-engine/internal/core/engine"
	api "faas-engine/internal/delivery/http"

	_ "faas-engine/docs"

	"github.com/rs/zerolog"
)

// @title           FaaS Engine API
// @version         1.0
// @description     API for managing runtimes and functions and running executions.
// @host            localhost:8080
// @BasePath        /
func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().
		Str("svc", "faas-engine").Logger()

	cfg := config.MustLoad()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().
		Str("deployment_env", string(cfg.DeploymentEnv)).
		Str("failure_policy", string(cfg.ExecutionFailurePolicy)).
		Msg("bootstrapping service")

	db, err := store.New(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect")
	}
	defer db.Close()

	inv := invoker.New(cfg.InvokeTimeout, log)

	var orchestrator engine.Orchestrator
	switch cfg.DeploymentEnv {
	case config.EnvKubernetes:
		cs, err := kubernetes.NewClientset(cfg.Kubeconfig)
		if err != nil {
			log.Fatal().Err(err).Msg("kubernetes client init")
		}
		orchestrator = kubernetes.New(cs, inv, cfg, log)
	default:
		dcli, err := docker.New(cfg, inv, log)
		if err != nil {
			log.Fatal().Err(err).Msg("docker client init")
		}
		orchestrator = dcli
	}

	var locker engine.Locker = lock.NewLocal()
	if cfg.RedisURL != "" {
		rdb, err := lock.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.LockTTL, log)
		log.Info().Msg("using distributed locks")
	}

	eng := engine.NewEngine(db, orchestrator, inv, locker, cfg, log)

	handler := api.NewHandler(db, eng, cfg, log)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("listen", cfg.ListenAddr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("shutdown complete")
}
