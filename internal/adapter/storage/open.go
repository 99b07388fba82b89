package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/wallet/internal/config"
	"github.com/rl1809/wallet/internal/port"
)

// Open connects to the store named by cfg.StoreDriver, applying migrations
// when enabled. The returned func releases the connection.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.AccountStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		if cfg.DBMigrate {
			if err := MigrateMySQL(ctx, db); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		logger.Info("connected to mysql")
		return NewMySQLAdapter(db), func() { db.Close() }, nil

	case config.StorePostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxOpenConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if cfg.DBMigrate {
			if err := MigratePostgres(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		logger.Info("connected to postgres")
		return NewPostgresAdapter(pool), pool.Close, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.DBMaxOpenConns,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to redis")
		return NewRedisAdapter(rdb), func() { rdb.Close() }, nil

	case config.StoreMemory:
		logger.Warn("using in-memory store, balances are lost on restart")
		return NewMemoryAdapter(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
