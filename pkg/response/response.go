package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/dfe0990ngc/pcds-student-portal/pkg/errors"
)

// Payload is the base API envelope. Every endpoint responds with success,
// a human-readable message, and optional endpoint-specific extra fields
// flattened alongside them.
type Payload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Success writes a JSON success response, merging extra fields into the envelope.
func Success(c *gin.Context, statusCode int, message string, extra gin.H) {
	c.JSON(statusCode, merge(Payload{Success: true, Message: message}, extra))
}

// Fail writes a JSON failure response with an explicit status code. Used for
// flows that report a failure outcome without an AppError (e.g. mail delivery).
func Fail(c *gin.Context, statusCode int, message string, extra gin.H) {
	c.JSON(statusCode, merge(Payload{Success: false, Message: message}, extra))
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	ErrorWithExtra(c, err, nil)
}

// ErrorWithExtra writes an AppError response carrying additional fields,
// such as verification_required on unverified-login failures.
func ErrorWithExtra(c *gin.Context, err error, extra gin.H) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, merge(Payload{Success: false, Message: appErr.Message}, extra))
}

func merge(base Payload, extra gin.H) gin.H {
	out := gin.H{
		"success": base.Success,
		"message": base.Message,
	}
	for k, v := range extra {
		if k == "success" || k == "message" {
			continue
		}
		out[k] = v
	}
	return out
}
