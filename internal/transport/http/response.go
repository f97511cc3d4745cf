package httptransport

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"eyescan-server/internal/platform/errors"
)

// MsgInternalError is returned for failures that carry no client message,
// including recovered panics.
const MsgInternalError = "Internal server error"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondError writes {"error": message} with httpStatus.
func RespondError(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, ErrorResponse{Error: message})
}

// StatusForKind maps request failure kinds to HTTP status codes.
func StatusForKind(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation, errors.KindDecode:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage returns the client-facing message carried by a typed error.
// Causes are never included.
func ErrorMessage(err error) string {
	var typed *errors.Error
	if stderrors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	return MsgInternalError
}

// RespondKindError writes err using its kind for the status and its Message as
// the body. Untyped errors become a 500 with a generic message.
func RespondKindError(c *gin.Context, err error) {
	_ = c.Error(err)
	RespondError(c, StatusForKind(errors.KindOf(err)), ErrorMessage(err))
}
