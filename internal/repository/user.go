package repository

import (
	"context"
	"errors"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// UserRepository reads accounts owned by the auth service
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, COALESCE(profile_id, ''), push_token, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

// GetByProfileID retrieves the user owning a profile
func (r *UserRepository) GetByProfileID(ctx context.Context, profileID string) (*models.User, error) {
	query := `
		SELECT id, COALESCE(profile_id, ''), push_token, created_at
		FROM users
		WHERE profile_id = $1
		LIMIT 1
	`
	return r.scanOne(ctx, query, profileID)
}

func (r *UserRepository) scanOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.ProfileID, &user.PushToken, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Persistence("failed to get user", err)
	}
	return &user, nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return apperrors.Persistence("failed to update push token", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}
