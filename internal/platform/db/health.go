package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// HealthStatus is the payload of the database health endpoint.
type HealthStatus struct {
	Status        string `json:"status"`
	PingLatency   string `json:"ping_latency,omitempty"`
	Error         string `json:"error,omitempty"`
	TotalConns    int32  `json:"total_conns"`
	IdleConns     int32  `json:"idle_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	MaxConns      int32  `json:"max_conns"`
}

// CheckHealth pings the database and reports pool utilisation alongside the
// observed round-trip latency.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) HealthStatus {
	stat := pool.Stat()
	status := HealthStatus{
		Status:        "healthy",
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}

	start := time.Now()
	if err := pool.Ping(ctx); err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
		return status
	}
	status.PingLatency = time.Since(start).String()
	return status
}

// HealthHandler returns a handler for the database health check endpoint.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		status := CheckHealth(ctx, pool)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, status)
	}
}
