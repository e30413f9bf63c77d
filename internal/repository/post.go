// Package repository provides the data access layer over the posts stores and the users store.
package repository

import (
	"context"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/7930navid/posts-server/internal/cache"
	"github.com/7930navid/posts-server/internal/models"
	"github.com/7930navid/posts-server/internal/shard"
)

// PostRepository defines the interface for post data operations.
// Every method keyed by email routes through the shard router; List merges
// every store it reads.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	List(ctx context.Context) ([]*models.Post, error)
	ListByEmail(ctx context.Context, email string) ([]*models.Post, error)
	UpdateBody(ctx context.Context, email, id string, body models.Body) (*models.Post, error)
	Delete(ctx context.Context, email, id string) error
	UpdateProfile(ctx context.Context, email, username, avatar string) ([]*models.Post, error)
	DeleteByEmail(ctx context.Context, email string) (int64, error)
}

type postRepository struct {
	stores []*gorm.DB
	router *shard.Router
}

// NewPostRepository creates a post repository over stores, indexed the way router hands them out.
func NewPostRepository(stores []*gorm.DB, router *shard.Router) PostRepository {
	return &postRepository{stores: stores, router: router}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.router.Exec(ctx, "create", post.Email, func(ctx context.Context, store int) error {
		return r.stores[store].WithContext(ctx).Create(post).Error
	})
	if err == nil {
		cache.InvalidatePostsList(ctx)
	}
	return err
}

func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	err := cache.Aside(ctx, cache.PostsListKey, &posts, cache.PostsListTTL, func() error {
		merged, err := r.collect(ctx, "list", func(db *gorm.DB) *gorm.DB { return db }, r.router.Global)
		if err != nil {
			return err
		}
		posts = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListByEmail(ctx context.Context, email string) ([]*models.Post, error) {
	return r.collect(ctx, "list_by_email", byEmail(email), func(ctx context.Context, op string, fn shard.StoreFunc) error {
		return r.router.Exec(ctx, op, email, fn)
	})
}

// UpdateBody replaces the content of the post with id when it belongs to
// email. A missing or foreign post yields gorm.ErrRecordNotFound.
func (r *postRepository) UpdateBody(ctx context.Context, email, id string, body models.Body) (*models.Post, error) {
	var updated *models.Post
	err := r.router.Exec(ctx, "update", email, func(ctx context.Context, store int) error {
		db := r.stores[store].WithContext(ctx)
		res := db.Model(&models.Post{}).
			Where("id = ? AND email = ?", id, email).
			Update("post", body)
		if res.Error != nil {
			return res.Error
		}
		// Zero rows is an answer, not a store failure; do not fail over.
		updated = nil
		if res.RowsAffected == 0 {
			return nil
		}

		var post models.Post
		if err := db.Where("id = ?", id).First(&post).Error; err != nil {
			return err
		}
		updated = &post
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cache.InvalidatePostsList(ctx)
	return updated, nil
}

// Delete removes the post with id when it belongs to email.
func (r *postRepository) Delete(ctx context.Context, email, id string) error {
	var deleted int64
	err := r.router.Exec(ctx, "delete", email, func(ctx context.Context, store int) error {
		res := r.stores[store].WithContext(ctx).
			Where("id = ? AND email = ?", id, email).
			Delete(&models.Post{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidatePostsList(ctx)
	return nil
}

// UpdateProfile rewrites the denormalized username and avatar on every post of
// email and returns the updated posts, newest first.
func (r *postRepository) UpdateProfile(ctx context.Context, email, username, avatar string) ([]*models.Post, error) {
	var (
		mu      sync.Mutex
		updated = make([]*models.Post, 0)
	)
	err := r.router.Sweep(ctx, "update_profile", email, func(ctx context.Context, store int) error {
		db := r.stores[store].WithContext(ctx)
		res := db.Model(&models.Post{}).
			Where("email = ?", email).
			Updates(map[string]any{"username": username, "avatar": avatar})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var part []*models.Post
		if err := db.Where("email = ?", email).Find(&part).Error; err != nil {
			return err
		}
		mu.Lock()
		updated = append(updated, part...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		cache.InvalidatePostsList(ctx)
	}
	models.SortNewestFirst(updated)
	return updated, nil
}

// DeleteByEmail removes every post of email and returns how many rows went.
func (r *postRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	var deleted atomic.Int64
	err := r.router.Sweep(ctx, "delete_by_email", email, func(ctx context.Context, store int) error {
		res := r.stores[store].WithContext(ctx).
			Where("email = ?", email).
			Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		deleted.Add(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted.Load() > 0 {
		cache.InvalidatePostsList(ctx)
	}
	return deleted.Load(), nil
}

type runFunc func(ctx context.Context, op string, fn shard.StoreFunc) error

// collect runs scope on the stores chosen by run and merges the rows newest first.
func (r *postRepository) collect(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB, run runFunc) ([]*models.Post, error) {
	var (
		mu     sync.Mutex
		merged = make([]*models.Post, 0)
	)
	err := run(ctx, op, func(ctx context.Context, store int) error {
		var part []*models.Post
		if err := scope(r.stores[store].WithContext(ctx)).Order("created_at DESC").Find(&part).Error; err != nil {
			return err
		}
		mu.Lock()
		merged = append(merged, part...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	models.SortNewestFirst(merged)
	return merged, nil
}

func byEmail(email string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("email = ?", email)
	}
}
