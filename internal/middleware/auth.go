package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meucuidador/care-api/internal/handler"
	"github.com/meucuidador/care-api/internal/model"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.Viewer, error)
}

type AuthMiddleware struct {
	authService TokenValidator
}

func NewAuthMiddleware(authService TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Authenticate verifies the bearer token and stores the viewer in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			return
		}

		viewer, err := m.authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			handler.RespondError(c, apperrors.Unauthorized(err))
			return
		}

		handler.SetViewer(c, *viewer)
		c.Next()
	}
}

// RequireProfiles rejects viewers whose profile type is not listed.
func (m *AuthMiddleware) RequireProfiles(profiles ...model.ProfileType) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer, ok := handler.GetViewer(c)
		if !ok {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			return
		}
		for _, p := range profiles {
			if viewer.ProfileType == p {
				c.Next()
				return
			}
		}
		handler.RespondError(c, apperrors.Forbidden("profile not allowed"))
	}
}
