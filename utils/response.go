package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postgen/postgen/common"
)

// Error writes {"error": message} with the given status.
func Error(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}

// ErrorWith writes {"error": message} merged with extra fields.
func ErrorWith(ctx *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	ctx.JSON(status, body)
}

// StatusFor maps an error kind onto its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthenticated), errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// MessageFor is the caller-facing text for err.
func MessageFor(err error) string {
	if msg := common.Message(err); msg != "" {
		return msg
	}
	return "Server error: " + err.Error()
}

// Fail writes err using its kind's status and message, plus optional extra fields.
// Unclassified and upstream failures are logged.
func Fail(ctx *gin.Context, err error, extra gin.H) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Sugar.Errorw("request failed", "path", ctx.Request.URL.Path, "err", err)
	}
	ErrorWith(ctx, status, MessageFor(err), extra)
}
