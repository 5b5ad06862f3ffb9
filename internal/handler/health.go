package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and which pending store is in use.
type HealthHandler struct {
	Store string // "redis" or "bolt"
	Redis *redis.Client
}

// Health answers 200 while the process runs.  A Redis that stopped
// answering after startup is reported as degraded, not down: claims would
// fail but status reads keep working.
func (h *HealthHandler) Health(c echo.Context) error {
	out := echo.Map{"status": "ok", "store": h.Store}
	if h.Redis != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		defer cancel()
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			out["status"] = "degraded"
		}
	}
	return c.JSON(http.StatusOK, out)
}
