package handler

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
)

var ErrDatabaseNotInitialized = errors.New("database not initialized")

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness returns basic liveness status (is the server running?)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// Readiness returns readiness status (can the server handle requests?)
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	checks := make(map[string]interface{})
	allHealthy := true

	// Check database connection
	if err := h.checkDatabase(); err != nil {
		checks["database"] = fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		}
		allHealthy = false
	} else {
		checks["database"] = fiber.Map{
			"status": "healthy",
		}
	}

	status := "ok"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

// checkDatabase verifies database connectivity
func (h *HealthHandler) checkDatabase() error {
	if h.db == nil {
		return ErrDatabaseNotInitialized
	}
	return h.db.Ping()
}
