package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/browserd/models"
	"github.com/use-agent/browserd/pool"
)

// ListSessions returns a handler for GET /api/v1/sessions.
func ListSessions(m *pool.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := m.Sessions()
		c.JSON(http.StatusOK, models.SessionsResponse{
			Count:    len(sessions),
			Sessions: sessions,
		})
	}
}

// GetSession returns a handler for GET /api/v1/sessions/:id.
func GetSession(m *pool.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := m.GetSession(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Status())
	}
}

// respondError maps a PoolError to the right HTTP status code and writes a
// structured JSON error response.
func respondError(c *gin.Context, err error) {
	perr := new(models.PoolError)
	if !errors.As(err, &perr) {
		perr = models.NewPoolError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(perr), models.ErrorResponse{
		Success: false,
		Error:   perr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.PoolError) int {
	switch e.Code {
	case models.ErrCodeSessionNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotInitialized:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
