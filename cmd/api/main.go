package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // zone data for ?tz= on the admin directory

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/auth"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/db"
	httpx "github.com/geocoder89/profilehub/internal/http"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/notifications"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/geocoder89/profilehub/internal/queue/redisclient"
	"github.com/geocoder89/profilehub/internal/queue/worker"
	"github.com/geocoder89/profilehub/internal/session"
)

const serviceName = "profilehub-api"

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg, serviceName)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	s, checks, closeStores, err := openStores(ctx, cfg, log, prom)
	if err != nil {
		return err
	}
	defer closeStores()

	created, err := db.EnsureAdminUser(ctx, s.users, cfg)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	var bus session.Bus = session.NewLocalBus()
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer rdb.Close()

		bus = session.NewRedisBus(rdb.Raw(), log)
		checks = append(checks, handlers.Check{Name: "redis", Ping: rdb.Ping})
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), cfg.ActionTokenTTL())

	sessions := session.NewProvider(session.Deps{
		Users:   s.users,
		Refresh: s.refresh,
		Jobs:    s.jobs,
		JWT:     jwtManager,
		Bus:     bus,
		Log:     log,
		Prom:    prom,
		BaseURL: cfg.AppBaseURL,
	})

	name := ""
	if cfg.OTelEnabled {
		name = serviceName
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:         log,
		Cfg:         cfg,
		JWT:         jwtManager,
		Accounts:    account.NewService(s.profiles, log, prom),
		Sessions:    sessions,
		MailJobs:    s.jobs,
		Checks:      checks,
		Prom:        prom,
		Gatherer:    reg,
		ServiceName: name,
	})

	// jobs queued in memory can only be delivered from this process
	if cfg.WorkerEmbedded || cfg.StoreDriver == config.StoreDriverMemory {
		w := worker.New(worker.Config{
			WorkerID:     worker.DefaultWorkerID(),
			PollInterval: time.Duration(cfg.WorkerPollMS) * time.Millisecond,
		}, s.jobs, notifications.FromConfig(cfg, log), log, prom)

		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("embedded worker stopped", "err", err)
			}
		}()
	}

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
