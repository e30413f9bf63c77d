package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/7930navid/posts-server/internal/models"
	"github.com/7930navid/posts-server/internal/service"
)

type contentRequest struct {
	Text string      `json:"text"`
	Post models.Body `json:"post"`
}

// Root handles GET /
func (s *Server) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Backend is working ✅"})
}

// CreatePost handles POST /post
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
		Avatar string `json:"avatar"`
		contentRequest
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		Username: req.User.Username,
		Email:    req.User.Email,
		Avatar:   req.Avatar,
		Text:     req.Text,
		Post:     req.Post,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post Created",
		"post":    post,
	})
}

// GetPosts handles GET /post
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetUserPosts handles GET /posts?email=
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListUserPosts(c.UserContext(), c.Query("email"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// UpdatePost handles PUT /post/:email/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req contentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), c.Params("email"), c.Params("id"), req.Text, req.Post)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Post updated successfully",
		"post":    post,
	})
}

// DeletePost handles DELETE /post/:email/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.DeletePost(c.UserContext(), c.Params("email"), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// EditUserPosts handles PUT /edituserposts/:email
func (s *Server) EditUserPosts(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	posts, err := s.postService.EditUserPosts(c.UserContext(), c.Params("email"), req.Username, req.Avatar)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":      "User posts updated successfully",
		"updatedPosts": posts,
	})
}

// DeleteUserPosts handles DELETE /deleteuserposts/:email
func (s *Server) DeleteUserPosts(c *fiber.Ctx) error {
	n, err := s.postService.DeleteUserPosts(c.UserContext(), c.Params("email"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":      "User posts deleted successfully",
		"deletedCount": n,
	})
}

// DeleteUser handles DELETE /deleteuser/:email
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	email := service.NormalizeEmail(c.Params("email"))
	if err := s.postService.DeleteUser(c.UserContext(), email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("All posts of %s has been deleted", email)})
}
