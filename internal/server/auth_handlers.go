package server

import (
	"github.com/gofiber/fiber/v2"
)

// VerifyPassword handles POST /verify-password
func (s *Server) VerifyPassword(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if err := s.authService.VerifyPassword(c.UserContext(), req.Email, req.Password); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password verified"})
}
