// Package service holds request validation and error mapping on top of the repositories.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/7930navid/posts-server/internal/models"
	"github.com/7930navid/posts-server/internal/repository"
)

const msgPostNotFound = "Post not found or unauthorized"

type PostService struct {
	postRepo repository.PostRepository
}

// CreatePostInput is a new post. Text and Post are alternatives; a non-empty
// Post wins.
type CreatePostInput struct {
	Username string
	Email    string
	Avatar   string
	Text     string
	Post     models.Body
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

// NormalizeEmail is the partition key form of an email. Every route uses it,
// so "Alice@X.com" and "alice@x.com" land on the same store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func bodyFrom(text string, post models.Body) (models.Body, bool) {
	if !post.IsEmpty() {
		return post, true
	}
	if strings.TrimSpace(text) != "" {
		return models.Body{"text": text}, true
	}
	return nil, false
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	body, ok := bodyFrom(in.Text, in.Post)
	if !ok {
		return nil, models.NewValidationError("Please write a post first")
	}

	email := NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" {
		return nil, models.NewValidationError("User email and username are required")
	}

	post := &models.Post{
		Username: username,
		Email:    email,
		Avatar:   in.Avatar,
		Body:     body,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, models.NewInternalError("Error creating post", err)
	}
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.postRepo.List(ctx)
	if err != nil {
		return nil, models.NewInternalError("Error fetching posts", err)
	}
	return posts, nil
}

func (s *PostService) ListUserPosts(ctx context.Context, email string) ([]*models.Post, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, models.NewValidationError("Email is required")
	}
	posts, err := s.postRepo.ListByEmail(ctx, email)
	if err != nil {
		return nil, models.NewInternalError("Error fetching posts", err)
	}
	return posts, nil
}

// UpdatePost replaces the content of one post. A post that does not exist and
// a post owned by another email are indistinguishable to the caller.
func (s *PostService) UpdatePost(ctx context.Context, email, id, text string, post models.Body) (*models.Post, error) {
	body, ok := bodyFrom(text, post)
	if !ok {
		return nil, models.NewValidationError("Please write a post first")
	}

	email = NormalizeEmail(email)
	if email == "" || !isUUID(id) {
		return nil, models.NewNotFoundError(msgPostNotFound)
	}

	updated, err := s.postRepo.UpdateBody(ctx, email, id, body)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError(msgPostNotFound)
	}
	if err != nil {
		return nil, models.NewInternalError("Error updating post", err)
	}
	return updated, nil
}

func (s *PostService) DeletePost(ctx context.Context, email, id string) error {
	email = NormalizeEmail(email)
	if email == "" || !isUUID(id) {
		return models.NewNotFoundError(msgPostNotFound)
	}

	err := s.postRepo.Delete(ctx, email, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(msgPostNotFound)
	}
	if err != nil {
		return models.NewInternalError("Error deleting post", err)
	}
	return nil
}

// EditUserPosts copies a new username and avatar onto every post of email.
func (s *PostService) EditUserPosts(ctx context.Context, email, username, avatar string) ([]*models.Post, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, models.NewValidationError("Email is required")
	}
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(avatar) == "" {
		return nil, models.NewValidationError("Username and avatar are required")
	}

	posts, err := s.postRepo.UpdateProfile(ctx, email, username, avatar)
	if err != nil {
		return nil, models.NewInternalError("Error updating posts", err)
	}
	if len(posts) == 0 {
		return nil, models.NewNotFoundError("No posts found for this user")
	}
	return posts, nil
}

// DeleteUserPosts removes every post of email. Deleting nothing is not an error.
func (s *PostService) DeleteUserPosts(ctx context.Context, email string) (int64, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return 0, models.NewValidationError("Email is required")
	}
	n, err := s.postRepo.DeleteByEmail(ctx, email)
	if err != nil {
		return 0, models.NewInternalError("Error deleting posts", err)
	}
	return n, nil
}

// DeleteUser removes every post of email and reports a user with no posts as not found.
func (s *PostService) DeleteUser(ctx context.Context, email string) error {
	n, err := s.DeleteUserPosts(ctx, email)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewNotFoundError("User not found")
	}
	return nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
