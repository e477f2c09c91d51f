package model

import (
	"github.com/golang-jwt/jwt/v5"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	User        Viewer `json:"user"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID      int64       `json:"user_id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	ProfileType ProfileType `json:"profile_type"`
}

func (c *TokenClaims) Viewer() Viewer {
	return Viewer{
		ID:          c.UserID,
		Name:        c.Name,
		Email:       c.Email,
		ProfileType: c.ProfileType,
	}
}
