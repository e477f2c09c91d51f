package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/internal/handler"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
)

// ErrorHandler logs errors recorded on the context. Server errors are
// logged at error level, client errors at debug. If no handler wrote a
// response the last error is rendered in the standard envelope.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			status := apperrors.HTTPStatus(e.Err)
			event := logger.Debug()
			if status >= 500 {
				event = logger.Error()
			}
			event.
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Int("status", status).
				Msg("request error")
		}

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last().Err
		c.JSON(apperrors.HTTPStatus(lastErr), handler.NewErrorResponse(apperrors.PublicMessage(lastErr)))
	}
}
