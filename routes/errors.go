package routes

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shandle1/CheckDee-sub000/services"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindValidation:        http.StatusBadRequest,
	services.KindGeofenceViolation: http.StatusBadRequest,
	services.KindForbidden:         http.StatusForbidden,
	services.KindNotFound:          http.StatusNotFound,
	services.KindInvalidState:      http.StatusConflict,
	services.KindConflict:          http.StatusConflict,
}

// respondError writes err as JSON. Lifecycle errors carry their structured
// data; anything else is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	e, ok := services.AsError(err)
	if !ok {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "Request too large",
				"message": "Request body exceeds maximum size limit",
			})
			return
		}
		log.Printf("❌ %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong. Please try again.",
		})
		return
	}

	body := gin.H{
		"error":   string(e.Kind),
		"message": e.Message,
	}
	if e.Kind == services.KindGeofenceViolation {
		body["distance"] = math.Round(e.Distance*100) / 100
		body["allowed_radius"] = e.AllowedRadius
	}
	if e.CurrentState != "" {
		body["current_state"] = e.CurrentState
	}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}

	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusBadRequest
	}
	c.JSON(status, body)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   string(services.KindValidation),
			"message": "Invalid " + name,
		})
		return 0, false
	}
	return uint(id), true
}
