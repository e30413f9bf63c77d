package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/7930navid/posts-server/internal/middleware"
	"github.com/7930navid/posts-server/internal/models"
)

// InitStores creates the posts table on every store, one store at a time.
// A store that fails is logged and left not ready; the others are still
// initialized. With failFast the joined errors are returned so startup can abort.
func InitStores(ctx context.Context, stores []*Store, failFast bool) error {
	var errs []error

	for _, s := range stores {
		if err := initStore(ctx, s.DB); err != nil {
			s.SetReady(false)
			middleware.Logger.ErrorContext(ctx, "Posts table initialization failed",
				slog.Int("store", s.Index),
				slog.String("name", s.Name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("store %d (%s): %w", s.Index, s.Name, err))
			continue
		}
		s.SetReady(true)
		middleware.Logger.InfoContext(ctx, "Posts table ready",
			slog.Int("store", s.Index),
			slog.String("name", s.Name),
		)
	}

	if failFast {
		return errors.Join(errs...)
	}
	return nil
}

func initStore(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	postgres := db.Dialector.Name() == "postgres"

	if postgres {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto").Error; err != nil {
			return fmt.Errorf("enable pgcrypto: %w", err)
		}
	}

	if err := db.AutoMigrate(&models.Post{}); err != nil {
		return fmt.Errorf("migrate posts: %w", err)
	}

	if postgres {
		if err := db.Exec("ALTER TABLE posts ALTER COLUMN id SET DEFAULT gen_random_uuid()").Error; err != nil {
			return fmt.Errorf("set id default: %w", err)
		}
	}
	return nil
}
