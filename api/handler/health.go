package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/browserd/models"
	"github.com/use-agent/browserd/pool"
)

// Version is stamped into health responses.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// The pool computes its status from one consistent snapshot, so session_count
// always matches the id list even while sessions churn.
func Health(m *pool.Manager, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := m.Health()

		code := http.StatusOK
		if !health.Initialized {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, models.HealthResponse{
			Status:  health.Status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Pool:    health,
			Version: Version,
		})
	}
}
