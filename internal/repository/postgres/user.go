package postgres

import (
	"context"

	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
)

const userColumns = `id, name, email, password_hash, profile_type, age, photo, weight, whatsapp, created_at, updated_at`

const (
	queryUserByID    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	queryUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := r.db.GetContext(ctx, &user, queryUserByID, id); err != nil {
		return nil, wrapErr("failed to get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.GetContext(ctx, &user, queryUserByEmail, email); err != nil {
		return nil, wrapErr("failed to get user by email", err)
	}
	return &user, nil
}
