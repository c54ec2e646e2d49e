package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const pingTimeout = 3 * time.Second

// PoolReport is the connection pool snapshot served on /health/db.
type PoolReport struct {
	InUse          int32  `json:"in_use"`
	Idle           int32  `json:"idle"`
	Max            int32  `json:"max"`
	AcquiresWaited int64  `json:"acquires_waited"`
	AcquireWait    string `json:"acquire_wait"`
}

// Saturated reports whether every connection is checked out.
func (r PoolReport) Saturated() bool {
	return r.Max > 0 && r.InUse >= r.Max
}

func reportOf(s *pgxpool.Stat) PoolReport {
	return PoolReport{
		InUse:          s.AcquiredConns(),
		Idle:           s.IdleConns(),
		Max:            s.MaxConns(),
		AcquiresWaited: s.EmptyAcquireCount(),
		AcquireWait:    s.AcquireDuration().String(),
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string     `json:"status"`
	Ping   string     `json:"ping,omitempty"`
	Error  string     `json:"error,omitempty"`
	Pool   PoolReport `json:"pool"`
}

// HealthHandler serves /health/db. A failed ping answers 503; a saturated
// pool still answers 200 but reports "saturated".
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(pool, func() PoolReport { return reportOf(pool.Stat()) })
}

func healthHandler(p Pinger, report func() PoolReport) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		start := time.Now()
		err := p.Ping(ctx)
		resp := healthResponse{Pool: report()}
		if err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		resp.Ping = time.Since(start).String()
		resp.Status = "healthy"
		if resp.Pool.Saturated() {
			resp.Status = "saturated"
		}
		return c.JSON(http.StatusOK, resp)
	}
}
