// Package database opens the posts stores and the users store.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/7930navid/posts-server/internal/config"
	"github.com/7930navid/posts-server/internal/middleware"
)

const statementCacheCapacity = 256

// Store is one posts database. Index is its position in POSTS_DB_URLS and is
// what the shard router hands out.
type Store struct {
	Index int
	Name  string
	DB    *gorm.DB

	ready atomic.Bool
}

// NewStore wraps an open connection. The store starts not ready until
// InitStores has created its table.
func NewStore(index int, name string, db *gorm.DB) *Store {
	return &Store{Index: index, Name: name, DB: db}
}

// Ready reports whether table initialization succeeded on this store.
func (s *Store) Ready() bool { return s.ready.Load() }

// SetReady overrides the readiness flag.
func (s *Store) SetReady(ready bool) { s.ready.Store(ready) }

// Ping checks that the store answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Connect opens every posts store listed in cfg. Connections are lazy: an
// unreachable store does not fail Connect, it fails InitStores and the
// keep-alive pings.
func Connect(cfg *config.Config) ([]*Store, error) {
	dsns := cfg.StoreDSNs()
	stores := make([]*Store, 0, len(dsns))

	for i, dsn := range dsns {
		db, name, err := open(dsn, cfg)
		if err != nil {
			_ = Close(stores)
			return nil, fmt.Errorf("store %d: %w", i, err)
		}
		stores = append(stores, NewStore(i, name, db))
		middleware.Logger.Info("Posts store configured",
			slog.Int("store", i),
			slog.String("name", name),
		)
	}

	return stores, nil
}

// ConnectUsers opens the users store. It returns nil when USERS_DB_URL is unset.
func ConnectUsers(cfg *config.Config) (*gorm.DB, error) {
	if cfg.UsersDBURL == "" {
		return nil, nil
	}
	db, name, err := open(cfg.UsersDBURL, cfg)
	if err != nil {
		return nil, fmt.Errorf("users store: %w", err)
	}
	middleware.Logger.Info("Users store configured", slog.String("name", name))
	return db, nil
}

func open(dsn string, cfg *config.Config) (*gorm.DB, string, error) {
	pgxCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, "", fmt.Errorf("parse DSN: %w", err)
	}
	pgxCfg.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	pgxCfg.StatementCacheCapacity = statementCacheCapacity
	if _, ok := pgxCfg.RuntimeParams["statement_timeout"]; !ok && cfg.QueryTimeout > 0 {
		pgxCfg.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.QueryTimeout.Milliseconds(), 10)
	}

	name := storeName(pgxCfg)
	sqlDB := stdlib.OpenDB(*pgxCfg)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               NewGormLogger(name),
		DisableAutomaticPing: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, "", err
	}
	return db, name, nil
}

// storeName identifies a store in logs and metrics without leaking credentials.
func storeName(c *pgx.ConnConfig) string {
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Database)
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	maxOpen := cfg.DBMaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.DBMaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

// Close closes every store connection.
func Close(stores []*Store) error {
	var errs []error
	for _, s := range stores {
		sqlDB, err := s.DB.DB()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store %d: %w", s.Index, err))
		}
	}
	return errors.Join(errs...)
}

// DBs returns the gorm handles in store index order.
func DBs(stores []*Store) []*gorm.DB {
	out := make([]*gorm.DB, len(stores))
	for i, s := range stores {
		out[i] = s.DB
	}
	return out
}
