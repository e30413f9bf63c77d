package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/7930navid/posts-server/internal/models"
	"github.com/7930navid/posts-server/internal/repository"
	"github.com/7930navid/posts-server/internal/service"
	"github.com/7930navid/posts-server/internal/shard"
)

func setupService(t *testing.T, n int) ([]*gorm.DB, *shard.Router, *service.PostService) {
	t.Helper()
	stores := make([]*gorm.DB, n)
	for i := range stores {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
		require.NoError(t, db.AutoMigrate(&models.Post{}))
		stores[i] = db
	}
	router, err := shard.NewRouter(shard.RouterConfig{Strategy: shard.StrategyHash, Stores: n})
	require.NoError(t, err)
	return stores, router, service.NewPostService(repository.NewPostRepository(stores, router))
}

func TestFactory_Deterministic(t *testing.T) {
	a := NewFactory(42)
	b := NewFactory(42)
	assert.Equal(t, a.Author(), b.Author())
	assert.Equal(t, a.Emails(5), b.Emails(5))
}

func TestFactory_EmailsDistinctLowercase(t *testing.T) {
	emails := NewFactory(7).Emails(200)
	require.Len(t, emails, 200)

	seen := map[string]bool{}
	for _, e := range emails {
		assert.False(t, seen[e], "duplicate %s", e)
		seen[e] = true
		assert.Equal(t, service.NormalizeEmail(e), e)
	}
}

func TestFactory_PostBody(t *testing.T) {
	f := NewFactory(1)
	author := f.Author()

	plain := f.Post(author, 0)
	assert.NotEmpty(t, plain.Text)
	assert.Nil(t, plain.Post)

	linked := f.Post(author, 2)
	assert.Equal(t, linked.Text, linked.Post["text"])
	assert.NotEmpty(t, linked.Post["link"])
}

func TestSeeder_PostsLandOnOwners(t *testing.T) {
	stores, router, svc := setupService(t, 3)

	created, err := NewSeeder(svc, 0).Run(context.Background(), Options{Authors: 6, PostsPerAuthor: 2, Seed: 99})
	require.NoError(t, err)
	assert.Equal(t, 12, created)

	var total int64
	for i, db := range stores {
		var posts []models.Post
		require.NoError(t, db.Find(&posts).Error)
		total += int64(len(posts))
		for _, p := range posts {
			owner, ok := router.Owner(p.Email)
			require.True(t, ok)
			assert.Equal(t, i, owner, "post for %s on wrong store", p.Email)
		}
	}
	assert.Equal(t, int64(12), total)
}

func TestSeeder_RejectsEmptyRun(t *testing.T) {
	_, _, svc := setupService(t, 1)
	_, err := NewSeeder(svc, 1).Run(context.Background(), Options{})
	assert.Error(t, err)
}
