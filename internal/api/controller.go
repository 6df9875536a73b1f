package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutrilog/backend/internal/middleware"
	"github.com/pageza/nutrilog/backend/internal/repository"
)

// currentUser returns the authenticated user id set by the auth middleware
func currentUser(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func unauthorized(c *gin.Context) gin.H {
	c.Status(http.StatusUnauthorized)
	return gin.H{"success": false, "error": "authentication required"}
}

func badRequest(c *gin.Context, err error) gin.H {
	c.Status(http.StatusBadRequest)
	return gin.H{"success": false, "error": err.Error()}
}

// failure maps a repository error to a status code and a JSON body
func failure(c *gin.Context, err error) gin.H {
	outcome := repository.Classify(err)
	msg := err.Error()

	switch outcome {
	case repository.OutcomeNotFound:
		c.Status(http.StatusNotFound)
	case repository.OutcomeInvalid:
		c.Status(http.StatusUnprocessableEntity)
	default:
		c.Status(http.StatusInternalServerError)
		msg = "storage unavailable"
	}
	return gin.H{"success": false, "error": msg, "outcome": outcome.String()}
}

// parseDay parses a YYYY-MM-DD date in loc. An empty value means now.
func parseDay(value string, loc *time.Location, now time.Time) (time.Time, error) {
	if value == "" {
		return now.In(loc), nil
	}
	return time.ParseInLocation(time.DateOnly, value, loc)
}
