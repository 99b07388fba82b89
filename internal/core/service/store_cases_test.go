package service

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/wallet/internal/adapter/storage"
	"github.com/rl1809/wallet/internal/port"
)

// storeCase opens a fresh AccountStore. Database-backed cases skip unless
// their DSN is set.
type storeCase struct {
	name string
	open func(t *testing.T) port.AccountStore
}

var storeCases = []storeCase{
	{name: "memory", open: func(*testing.T) port.AccountStore { return storage.NewMemoryAdapter() }},
	{name: "redis", open: openRedisStore},
	{name: "mysql", open: openMySQLStore},
	{name: "postgres", open: openPostgresStore},
}

func openRedisStore(t *testing.T) port.AccountStore {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { client.Close() })
	return storage.NewRedisAdapter(client)
}

func openMySQLStore(t *testing.T) port.AccountStore {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN"))
	if dsn == "" {
		t.Skip("missing MYSQL_DSN env var")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	db.SetMaxOpenConns(20)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := storage.MigrateMySQL(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return storage.NewMySQLAdapter(db)
}

func openPostgresStore(t *testing.T) port.AccountStore {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("missing POSTGRES_DSN env var")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.MaxConns = 20

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := pool.Ping(ctx); err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	if err := storage.MigratePostgres(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return storage.NewPostgresAdapter(pool)
}

// runAcrossStores runs fn for every strategy over every available store.
func runAcrossStores(t *testing.T, fn func(t *testing.T, svc *WalletService, store *mockAccountStore)) {
	for _, sc := range storeCases {
		for _, tc := range strategyCases {
			t.Run(sc.name+"/"+tc.name, func(t *testing.T) {
				store := wrapAccountStore(sc.open(t))
				fn(t, NewWalletService(store, tc.build(store), testLogger), store)
			})
		}
	}
}
