// Package app wires a configured ledger: store, case lock and service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Veysel440/go-ledger/internal/config"
	"github.com/Veysel440/go-ledger/internal/lock"
	"github.com/Veysel440/go-ledger/internal/repo/memory"
	"github.com/Veysel440/go-ledger/internal/repo/mongo"
	"github.com/Veysel440/go-ledger/internal/repo/sqlite"
	"github.com/Veysel440/go-ledger/internal/service"
	"github.com/Veysel440/go-ledger/internal/telemetry"
)

type Ledger struct {
	Service *service.Service
	Metrics *telemetry.Metrics

	closers []func(context.Context) error
}

// Open connects the store and lock named by cfg. Close releases both.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{Metrics: telemetry.NewMetrics()}

	store, err := l.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	locks, err := l.openLock(ctx, cfg.Lock)
	if err != nil {
		_ = l.Close(ctx)
		return nil, err
	}

	l.Service = service.New(store, locks,
		service.WithLogger(logger),
		service.WithMetrics(l.Metrics),
		service.WithAppendAttempts(cfg.Ledger.AppendAttempts),
		service.WithRollbackAudit(cfg.Ledger.AuditRollbacks),
	)
	logger.Info("ledger_open", "store", cfg.Store.Driver, "lock", cfg.Lock.Driver)
	return l, nil
}

func (l *Ledger) openStore(ctx context.Context, c config.StoreConfig) (service.Store, error) {
	switch c.Driver {
	case "memory":
		return memory.New(), nil
	case "mongo":
		r, err := mongo.New(ctx, mongo.Config{URI: c.Mongo.URI, DB: c.Mongo.DB, Collection: c.Mongo.Collection})
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		l.closers = append(l.closers, r.Close)
		return r, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, sqlite.Config{Path: c.SQLite.Path})
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		l.closers = append(l.closers, func(context.Context) error { return s.Close() })
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", c.Driver)
}

func (l *Ledger) openLock(ctx context.Context, c config.LockConfig) (service.Locker, error) {
	switch c.Driver {
	case "local":
		return lock.NewLocal(), nil
	case "redis":
		locks, client, err := lock.NewRedisFromURL(c.RedisURL, lock.WithTTL(c.TTL))
		if err != nil {
			return nil, fmt.Errorf("open redis lock: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		l.closers = append(l.closers, closeRedis(client))
		return locks, nil
	}
	return nil, fmt.Errorf("unknown lock driver %q", c.Driver)
}

func closeRedis(c *redis.Client) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

func (l *Ledger) Close(ctx context.Context) error {
	var first error
	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}
