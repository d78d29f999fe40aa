package repository

import (
	"context"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/models"
)

// ProfileRepository reads public profile data owned by the profile service
type ProfileRepository struct {
	db DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetCards returns the cards of the given profiles keyed by id. Unknown ids
// are absent from the result.
func (r *ProfileRepository) GetCards(ctx context.Context, ids []string) (map[string]models.ProfileCard, error) {
	cards := make(map[string]models.ProfileCard, len(ids))
	if len(ids) == 0 {
		return cards, nil
	}

	query := `SELECT id, name, photo_url FROM profiles WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, apperrors.Persistence("failed to get profiles", err)
	}
	defer rows.Close()

	for rows.Next() {
		var card models.ProfileCard
		if err := rows.Scan(&card.ID, &card.Name, &card.PhotoURL); err != nil {
			return nil, apperrors.Persistence("failed to scan profile", err)
		}
		cards[card.ID] = card
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("error iterating profiles", err)
	}

	return cards, nil
}
