package services

import (
	"context"
	"fmt"
	"time"

	appconfig "match-relay-backend/internal/config"
	"match-relay-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

const (
	pushTimeout       = 10 * time.Second
	pushPreviewLength = 120
)

// PushTokenLookup finds the device token of a profile's owner
type PushTokenLookup interface {
	GetByProfileID(ctx context.Context, profileID string) (*models.User, error)
}

type apnsPusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNsNotifier sends an alert to receivers that were offline at send time.
// Pushes run in their own goroutine and never affect the send.
type APNsNotifier struct {
	client apnsPusher
	topic  string
	users  PushTokenLookup
}

// NewAPNsNotifier creates a token-authenticated APNs notifier
func NewAPNsNotifier(cfg appconfig.APNsConfig, users PushTokenLookup) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsNotifier{client: client, topic: cfg.Topic, users: users}, nil
}

// NotifyOffline pushes an alert for msg in the background
func (n *APNsNotifier) NotifyOffline(msg *models.Message) {
	go n.push(msg)
}

func (n *APNsNotifier) push(msg *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	user, err := n.users.GetByProfileID(ctx, msg.ReceiverID)
	if err != nil {
		log.Debug().Err(err).Str("profile_id", msg.ReceiverID).Msg("No user for push")
		return
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return
	}

	notification := &apns2.Notification{
		DeviceToken: *user.PushToken,
		Topic:       n.topic,
		Payload: payload.NewPayload().
			AlertTitle("New message").
			AlertBody(preview(msg.Content)).
			Sound("default").
			Custom("senderId", msg.SenderID).
			Custom("messageId", msg.ID),
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		log.Error().Err(err).Str("profile_id", msg.ReceiverID).Msg("Failed to send push notification")
		return
	}
	if !res.Sent() {
		log.Warn().
			Int("status", res.StatusCode).
			Str("reason", res.Reason).
			Str("profile_id", msg.ReceiverID).
			Msg("Push notification rejected")
		return
	}

	log.Debug().
		Str("apns_id", res.ApnsID).
		Str("profile_id", msg.ReceiverID).
		Msg("Push notification sent")
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= pushPreviewLength {
		return content
	}
	return string(runes[:pushPreviewLength]) + "…"
}
