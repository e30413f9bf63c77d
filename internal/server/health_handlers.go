package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/7930navid/posts-server/internal/keepalive"
)

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings every posts store. The service is ready when every
// store has its table and answers; Redis only counts when configured.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storesStatus := "healthy"
	for _, st := range s.stores {
		if !st.Ready() {
			storesStatus = "unhealthy"
			break
		}
	}
	if storesStatus == "healthy" {
		err := s.router.Broadcast(ctx, "ping", func(ctx context.Context, store int) error {
			return s.stores[store].Ping(ctx)
		})
		if err != nil {
			storesStatus = "unhealthy"
		}
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storesStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   overallStatus,
		"strategy": s.router.Strategy(),
		"checks": fiber.Map{
			"stores": storesStatus,
			"redis":  redisStatus,
		},
		"time": time.Now(),
	})
}

// StoresCheck reports the last keep-alive result of every store.
func (s *Server) StoresCheck(c *fiber.Ctx) error {
	type storeStatus struct {
		keepalive.Status
		Ready bool `json:"ready"`
	}

	statuses := s.monitor.Statuses()
	out := make([]storeStatus, len(statuses))
	for i, st := range statuses {
		out[i] = storeStatus{Status: st}
		if st.Store >= 0 && st.Store < len(s.stores) {
			out[i].Ready = s.stores[st.Store].Ready()
		}
	}

	return c.JSON(fiber.Map{
		"strategy": s.router.Strategy(),
		"healthy":  s.monitor.Healthy(),
		"stores":   out,
	})
}
