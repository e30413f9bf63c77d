package cache

import (
	"context"
	"time"
)

// PostsListKey holds the merged, newest-first listing of every store.
const PostsListKey = "posts:all"

// PostsListTTL bounds how stale the cached listing may get. Set from CACHE_TTL.
var PostsListTTL = 30 * time.Second

// InvalidatePostsList drops the cached listing after any write.
func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey)
}
