package httpkit

import (
	"errors"
	"net/http"

	"crm_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error replies with message and optional field-level details.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError writes the reply for err and reports whether there was one.
// Messages of 5xx errors, and of errors without a kind, stay server side.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	status, message := http.StatusInternalServerError, msgInternal
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.HTTPStatus() < http.StatusInternalServerError {
		status, message = appErr.HTTPStatus(), appErr.Message
	} else {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: message})
	return true
}

const msgInternal = "internal server error"
