package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/server/config"
	"github.com/ekodi-ai/gatekeeper/internal/storage/memory"
	"github.com/ekodi-ai/gatekeeper/internal/storage/postgres"
	"github.com/ekodi-ai/gatekeeper/internal/storage/redisstore"
)

// Directory is the user store together with its quota counters.
type Directory interface {
	service.UserDirectory
	service.QuotaStore
}

type namedSweeper struct {
	name string
	service.Sweeper
}

// stores holds the chosen backends and the connections behind them.
type stores struct {
	sessions    service.SessionStore
	revocations service.RevocationStore
	windows     service.WindowStore
	directory   Directory
	sweepers    []namedSweeper

	redis *redis.Client
	pool  *pgxpool.Pool
}

func openStores(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger) (*stores, error) {
	s := &stores{}

	switch cfg.Storage.Backend {
	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		opts := redisstore.Options{
			Prefix:    cfg.Storage.RedisPrefix,
			CutoffTTL: max(cfg.Auth.RefreshTTL, cfg.Auth.StaffRefreshTTL),
		}
		sessions := redisstore.NewSessionStore(client, opts)
		s.redis = client
		s.sessions = sessions
		s.revocations = redisstore.NewRevocationStore(client, opts)
		s.windows = redisstore.NewWindowStore(client, opts)
		s.sweepers = append(s.sweepers, namedSweeper{"redis_sessions", sessions})
	default:
		sessions := memory.NewSessionStore()
		revocations := memory.NewRevocationStore()
		windows := memory.NewWindowStore()
		s.sessions = sessions
		s.revocations = revocations
		s.windows = windows
		s.sweepers = append(s.sweepers,
			namedSweeper{"sessions", sessions},
			namedSweeper{"revocations", revocations},
			namedSweeper{"windows", windows},
		)
	}

	switch cfg.Storage.Directory {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			s.close()
			return nil, err
		}
		if cfg.Storage.MigrateSchema {
			if err := postgres.EnsureSchema(ctx, pool); err != nil {
				pool.Close()
				s.close()
				return nil, err
			}
		}
		s.pool = pool
		s.directory = postgres.NewDirectory(pool)
	default:
		s.directory = memory.NewDirectory()
	}

	log.Info("stores ready",
		"backend", cfg.Storage.Backend,
		"directory", cfg.Storage.Directory,
	)
	return s, nil
}

// close releases connections. It is safe on a partially opened set.
func (s *stores) close() error {
	var err error
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			err = fmt.Errorf("close redis: %w", cerr)
		}
		s.redis = nil
	}
	return err
}
