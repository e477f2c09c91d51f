package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meucuidador/care-api/internal/model"
)

func testUser() *model.User {
	return &model.User{
		Base:        model.Base{ID: 42},
		Name:        "Ana Souza",
		Email:       "ana@example.com",
		ProfileType: model.ProfileTypeCaregiver,
	}
}

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", "meucuidador", time.Hour)

	token, expiresAt, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, model.ProfileTypeCaregiver, claims.ProfileType)
	assert.Equal(t, "ana@example.com", claims.Viewer().Email)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTService("secret", "meucuidador", time.Hour).GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = NewJWTService("other", "meucuidador", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", "meucuidador", time.Minute).(*jwtService)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = NewJWTService("secret", "meucuidador", time.Minute).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewJWTService("secret", "meucuidador", time.Hour).ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
