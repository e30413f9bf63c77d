// Package seed generates demo authors and posts for development stores.
// Posts are written through the post service so each lands on the store
// that owns its author's email.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/7930navid/posts-server/internal/middleware"
	"github.com/7930navid/posts-server/internal/service"
)

// Author is a generated post author.
type Author struct {
	Username string
	Email    string
	Avatar   string
}

// Options controls how much data a Seeder generates.
type Options struct {
	Authors        int
	PostsPerAuthor int
	// Seed makes generation reproducible. Zero picks a random seed.
	Seed int64
}

// Factory builds fake authors and post input.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory creates a Factory. A zero seed is random.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Author returns a new author with a lowercase email.
func (f *Factory) Author() Author {
	name := f.faker.Username()
	return Author{
		Username: name,
		Email:    strings.ToLower(f.faker.Email()),
		Avatar:   fmt.Sprintf("https://picsum.photos/seed/%s/128/128", f.faker.UUID()),
	}
}

// Emails returns n distinct generated emails.
func (f *Factory) Emails(n int) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		e := strings.ToLower(f.faker.Email())
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Post builds create input for author. Every third post carries a link.
func (f *Factory) Post(a Author, n int) service.CreatePostInput {
	in := service.CreatePostInput{
		Username: a.Username,
		Email:    a.Email,
		Avatar:   a.Avatar,
		Text:     f.faker.Sentence(8),
	}
	if n%3 == 2 {
		in.Post = map[string]any{
			"text": in.Text,
			"link": f.faker.URL(),
		}
	}
	return in
}

// Seeder writes generated posts through a PostService.
type Seeder struct {
	posts   *service.PostService
	factory *Factory
}

// NewSeeder creates a Seeder.
func NewSeeder(posts *service.PostService, seed int64) *Seeder {
	return &Seeder{posts: posts, factory: NewFactory(seed)}
}

// Run creates opts.Authors authors with opts.PostsPerAuthor posts each and
// returns the number of posts created. It stops at the first failed write.
func (s *Seeder) Run(ctx context.Context, opts Options) (int, error) {
	if opts.Authors <= 0 || opts.PostsPerAuthor <= 0 {
		return 0, fmt.Errorf("authors and posts per author must be positive")
	}
	if opts.Seed != 0 {
		s.factory = NewFactory(opts.Seed)
	}

	created := 0
	for i := 0; i < opts.Authors; i++ {
		author := s.factory.Author()
		for j := 0; j < opts.PostsPerAuthor; j++ {
			if _, err := s.posts.CreatePost(ctx, s.factory.Post(author, j)); err != nil {
				return created, fmt.Errorf("seed post %d for %s: %w", j, author.Email, err)
			}
			created++
		}
	}
	middleware.Logger.Info("Seeded posts",
		slog.Int("authors", opts.Authors),
		slog.Int("posts", created),
	)
	return created, nil
}
