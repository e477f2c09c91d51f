package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		checkers map[string]Checker
		status   int
		body     string
	}{
		{
			name:   "no dependencies",
			status: http.StatusOK,
			body:   `{"status":"UP"}`,
		},
		{
			name: "all healthy",
			checkers: map[string]Checker{
				"postgres": CheckerFunc(func(context.Context) error { return nil }),
			},
			status: http.StatusOK,
			body:   `{"status":"UP"}`,
		},
		{
			name: "redis down",
			checkers: map[string]Checker{
				"postgres": CheckerFunc(func(context.Context) error { return nil }),
				"redis":    CheckerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
			},
			status: http.StatusServiceUnavailable,
			body:   `{"status":"DOWN","reason":"redis check failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			NewHandler(tt.checkers).RegisterRoutes(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestLiveness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(nil).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
