package server

import (
	"errors"
	"net/http"

	"serialpha/src/helpers"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	var (
		configErr    *helpers.ConfigurationError
		transportErr *helpers.TransportError
	)
	switch {
	case errors.As(err, &configErr):
		return http.StatusBadRequest
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// -----------------------------------------------------------------------------

func (s *ControlServer) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// -----------------------------------------------------------------------------

// bind decodes a JSON body, answering 400 when it is malformed.
func (s *ControlServer) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
