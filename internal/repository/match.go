package repository

import (
	"context"
	"time"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/models"

	"github.com/google/uuid"
)

// MatchRepository reads the match relationship written by the swipe service
type MatchRepository struct {
	db DB
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// IsMatched reports whether a match record exists for the unordered pair.
// It always hits the database; a match must be visible to the next send.
func (r *MatchRepository) IsMatched(ctx context.Context, profileA, profileB string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM matches
			WHERE (profile_a_id = $1 AND profile_b_id = $2)
			   OR (profile_a_id = $2 AND profile_b_id = $1)
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, profileA, profileB).Scan(&exists)
	if err != nil {
		return false, apperrors.Persistence("failed to check match", err)
	}
	return exists, nil
}

// Create records a match for the pair if none exists yet. Production
// matches are written by the swipe service; this is used for seeding.
func (r *MatchRepository) Create(ctx context.Context, profileA, profileB string) (*models.Match, error) {
	// profile_a_id should be lexicographically smaller to ensure consistency
	if profileA > profileB {
		profileA, profileB = profileB, profileA
	}
	match := &models.Match{
		ID:         uuid.New().String(),
		ProfileAID: profileA,
		ProfileBID: profileB,
		CreatedAt:  time.Now().UTC(),
	}

	query := `
		INSERT INTO matches (id, profile_a_id, profile_b_id, created_at)
		SELECT $1::text, $2::text, $3::text, $4::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM matches WHERE profile_a_id = $2 AND profile_b_id = $3
		)
	`
	_, err := r.db.Exec(ctx, query, match.ID, match.ProfileAID, match.ProfileBID, match.CreatedAt)
	if err != nil {
		return nil, apperrors.Persistence("failed to create match", err)
	}
	return match, nil
}
