package main

import (
	"context"
	"database/sql"
	"fmt"

	"warden/internal/platform/config"
	"warden/internal/platform/database"
	platformredis "warden/internal/platform/redis"
	"warden/internal/punishment/ports"
	"warden/internal/punishment/store/memory"
	redisstore "warden/internal/punishment/store/redis"
	"warden/internal/punishment/store/sqlstore"
	"warden/pkg/platform/audit"
	auditsql "warden/pkg/platform/audit/store/sqlstore"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type redisPinger struct{ client *platformredis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.client.Health(ctx) }

// storeHandle keeps whatever the health check needs to reach the backend.
// SQL backends also carry a persistent audit store.
type storeHandle struct {
	ports.Store
	ping  pinger
	audit audit.Store
}

// openStore builds the punishment store selected by cfg.Store.Driver. The
// returned func releases its connections.
func openStore(ctx context.Context, cfg config.Config) (storeHandle, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return storeHandle{Store: memory.New()}, func() {}, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return storeHandle{}, nil, err
		}
		return sqlHandle(ctx, db, sqlstore.SQLite)

	case config.DriverPostgres:
		db, err := database.OpenPostgres(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return storeHandle{}, nil, err
		}
		return sqlHandle(ctx, db, sqlstore.Postgres)

	case config.DriverRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return storeHandle{}, nil, err
		}
		return storeHandle{Store: redisstore.New(client.Client), ping: redisPinger{client}},
			func() { _ = client.Close() }, nil
	}
	return storeHandle{}, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

func sqlHandle(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect) (storeHandle, func(), error) {
	store := sqlstore.New(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return storeHandle{}, nil, err
	}
	auditStore := auditsql.New(db, dialect.Rebind)
	if err := auditStore.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return storeHandle{}, nil, err
	}
	return storeHandle{Store: store, ping: db, audit: auditStore}, func() { _ = db.Close() }, nil
}

func healthCheck(h storeHandle) func(context.Context) error {
	return func(ctx context.Context) error {
		if h.ping == nil {
			return nil
		}
		return h.ping.PingContext(ctx)
	}
}
