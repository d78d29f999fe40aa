package services

import (
	"context"

	"match-relay-backend/internal/models"
)

// ConversationStore derives conversation summaries from the message log
type ConversationStore interface {
	GetConversationsForProfile(ctx context.Context, profileID string) ([]*models.ConversationSummary, error)
}

// ProfileDirectory returns public profile cards
type ProfileDirectory interface {
	GetCards(ctx context.Context, ids []string) (map[string]models.ProfileCard, error)
}

// PhotoURLResolver turns a stored photo reference into a URL a client can load
type PhotoURLResolver interface {
	Resolve(ctx context.Context, stored string) string
}

// ConversationService builds the conversation list of a profile
type ConversationService struct {
	store    ConversationStore
	profiles ProfileDirectory
	photos   PhotoURLResolver
}

// NewConversationService creates a conversation service. photos may be nil,
// in which case stored photo values are returned as they are.
func NewConversationService(store ConversationStore, profiles ProfileDirectory, photos PhotoURLResolver) *ConversationService {
	return &ConversationService{
		store:    store,
		profiles: profiles,
		photos:   photos,
	}
}

// ListConversations returns one summary per counterpart, newest first.
// Counterparts whose profile no longer exists are left out.
func (s *ConversationService) ListConversations(ctx context.Context, profileID string) ([]*models.ConversationSummary, error) {
	summaries, err := s.store.GetConversationsForProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		ids = append(ids, summary.ProfileID)
	}

	cards, err := s.profiles.GetCards(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*models.ConversationSummary, 0, len(summaries))
	for _, summary := range summaries {
		card, ok := cards[summary.ProfileID]
		if !ok {
			continue
		}
		if s.photos != nil {
			card.PhotoURL = s.photos.Resolve(ctx, card.PhotoURL)
		}
		summary.Profile = &card
		result = append(result, summary)
	}

	return result, nil
}
