package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/db"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/jobs"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/geocoder89/profilehub/internal/queue/worker"
	"github.com/geocoder89/profilehub/internal/repo/memory"
	"github.com/geocoder89/profilehub/internal/repo/postgres"
	"github.com/geocoder89/profilehub/internal/session"
)

type jobStore interface {
	jobs.Creator
	handlers.AdminJobsRepo
	worker.JobsRepository
}

type stores struct {
	profiles account.ProfileStore
	users    interface {
		session.UserStore
		db.IdentitySeeder
	}
	refresh session.RefreshStore
	jobs    jobStore
}

// openStores picks the repositories for STORE_DRIVER. The returned checks feed /readyz.
func openStores(ctx context.Context, cfg config.Config, log *slog.Logger, prom *observability.Prom) (stores, []handlers.Check, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; data is lost on restart")

		profiles := memory.NewProfilesRepo()
		return stores{
			profiles: profiles,
			users:    memory.NewUsersRepo(profiles),
			refresh:  memory.NewRefreshTokensRepo(),
			jobs:     memory.NewJobsRepo(),
		}, nil, func() {}, nil

	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return stores{}, nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return stores{}, nil, nil, fmt.Errorf("db migrate: %w", err)
		}

		checks := []handlers.Check{{Name: "db", Ping: pool.Ping}}
		return stores{
			profiles: postgres.NewProfilesRepo(pool, prom),
			users:    postgres.NewUsersRepo(pool, prom),
			refresh:  postgres.NewRefreshTokensRepo(pool, prom),
			jobs:     postgres.NewJobsRepo(pool, prom),
		}, checks, pool.Close, nil

	default:
		return stores{}, nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
