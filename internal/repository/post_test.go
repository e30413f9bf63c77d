package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/7930navid/posts-server/internal/cache"
	"github.com/7930navid/posts-server/internal/models"
	"github.com/7930navid/posts-server/internal/shard"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newPost(email, text string, age time.Duration) *models.Post {
	return &models.Post{
		Username:  "user",
		Email:     email,
		Avatar:    "a.png",
		Body:      models.Body{"text": text},
		CreatedAt: base.Add(-age),
	}
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Post{}).Count(&n).Error)
	return n
}

func TestPostRepository_CreateLandsOnOwner(t *testing.T) {
	stores, router := setupStores(t, 3, shard.StrategyHash)
	repo := NewPostRepository(stores, router)
	ctx := context.Background()

	post := newPost("hello", "hi", 0)
	require.NoError(t, repo.Create(ctx, post))
	assert.NotEmpty(t, post.ID)

	owner := shard.HashToIndex("hello", 3)
	for i, db := range stores {
		want := int64(0)
		if i == owner {
			want = 1
		}
		assert.Equal(t, want, countRows(t, db), "store %d", i)
	}
}

func TestPostRepository_ListMergesNewestFirst(t *testing.T) {
	stores, router := setupStores(t, 3, shard.StrategyHash)
	repo := NewPostRepository(stores, router)
	ctx := context.Background()

	emails := []string{"alice@example.com", "bob@example.com", "carol@example.com", "dave@example.com"}
	for i, email := range emails {
		require.NoError(t, repo.Create(ctx, newPost(email, email, time.Duration(i)*time.Minute)))
	}

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, len(emails))
	for i, p := range posts {
		assert.Equal(t, emails[i], p.Email)
		assert.Equal(t, emails[i], p.Body.Text())
	}
}

func TestPostRepository_ListEmpty(t *testing.T) {
	stores, router := setupStores(t, 2, shard.StrategyRing)
	repo := NewPostRepository(stores, router)

	posts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestPostRepository_ListByEmail(t *testing.T) {
	stores, router := setupStores(t, 3, shard.StrategyHash)
	repo := NewPostRepository(stores, router)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newPost("alice@example.com", "old", time.Hour)))
	require.NoError(t, repo.Create(ctx, newPost("alice@example.com", "new", 0)))
	require.NoError(t, repo.Create(ctx, newPost("bob@example.com", "other", 0)))

	posts, err := repo.ListByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "new", posts[0].Body.Text())
	assert.Equal(t, "old", posts[1].Body.Text())
}

func TestPostRepository_UpdateBody(t *testing.T) {
	stores, router := setupStores(t, 3, shard.StrategyHash)
	repo := NewPostRepository(stores, router)
	ctx := context.Background()

	post := newPost("alice@example.com", "before", 0)
	require.NoError(t, repo.Create(ctx, post))

	updated, err := repo.UpdateBody(ctx, "alice@example.com", post.ID, models.Body{"text": "after"})
	require.NoError(t, err)
	assert.Equal(t, post.ID, updated.ID)
	assert.Equal(t, "after", updated.Body.Text())

	_, err = repo.UpdateBody(ctx, "mallory@example.com", post.ID, models.Body{"text": "stolen"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	posts, err := repo.ListByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "after", posts[0].Body.Text())
}

func TestPostRepository_DeleteRequiresOwner(t *testing.T) {
	stores, router := setupStores(t, 2, shard.StrategyHash)
	repo := NewPostRepository(stores, router)
	ctx := context.Background()

	post := newPost("alice@example.com", "hi", 0)
	require.NoError(t, repo.Create(ctx, post))

	assert.ErrorIs(t, repo.Delete(ctx, "bob@example.com", post.ID), gorm.ErrRecordNotFound)
	require.NoError(t, repo.Delete(ctx, "alice@example.com", post.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "alice@example.com", post.ID), gorm.ErrRecordNotFound)
}

func TestPostRepository_UpdateProfile(t *testing.T) {
	stores, router := setupStores(t, 3, shard.StrategyRing)
	repo := NewPostRepository(stores, router)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newPost("alice@example.com", "p", time.Duration(i)*time.Minute)))
	}
	require.NoError(t, repo.Create(ctx, newPost("bob@example.com", "p", 0)))

	updated, err := repo.UpdateProfile(ctx, "alice@example.com", "Alice", "new.png")
	require.NoError(t, err)
	require.Len(t, updated, 3)
	for _, p := range updated {
		assert.Equal(t, "Alice", p.Username)
		assert.Equal(t, "new.png", p.Avatar)
	}

	bob, err := repo.ListByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, "user", bob[0].Username)

	none, err := repo.UpdateProfile(ctx, "nobody@example.com", "x", "y")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostRepository_DeleteByEmailRoundRobinSweepsAllStores(t *testing.T) {
	stores, router := setupStores(t, 3, shard.StrategyRoundRobin)
	repo := NewPostRepository(stores, router)
	ctx := context.Background()

	// Rotation spreads these over every store.
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newPost("alice@example.com", "p", 0)))
	}
	for _, db := range stores {
		assert.Equal(t, int64(1), countRows(t, db))
	}

	deleted, err := repo.DeleteByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	deleted, err = repo.DeleteByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestPostRepository_WritesInvalidateListCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(cache.Close)

	stores, router := setupStores(t, 2, shard.StrategyHash)
	repo := NewPostRepository(stores, router)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newPost("alice@example.com", "first", time.Minute)))
	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, mr.Exists(cache.PostsListKey))

	require.NoError(t, repo.Create(ctx, newPost("bob@example.com", "second", 0)))
	assert.False(t, mr.Exists(cache.PostsListKey))

	posts, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "second", posts[0].Body.Text())
}

func TestPostRepository_DeleteSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	router, err := shard.NewRouter(shard.RouterConfig{Strategy: shard.StrategySingle, Stores: 1})
	require.NoError(t, err)
	repo := NewPostRepository([]*gorm.DB{db}, router)

	id := "0b7f7d4e-4f3a-4d38-9a55-0f0e6d2c1a11"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts" WHERE id = $1 AND email = $2`)).
		WithArgs(id, "alice@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "alice@example.com", id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_StoreErrorSurfaces(t *testing.T) {
	db, mock := setupMockDB(t)
	router, err := shard.NewRouter(shard.RouterConfig{Strategy: shard.StrategySingle, Stores: 1})
	require.NoError(t, err)
	repo := NewPostRepository([]*gorm.DB{db}, router)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" ORDER BY created_at DESC`)).
		WillReturnError(assert.AnError)

	_, err = repo.List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
