package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// MessageStore is the durable message log the relay writes to
type MessageStore interface {
	Append(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
	GetConversation(ctx context.Context, profileA, profileB string) ([]*models.Message, error)
	MarkConversationRead(ctx context.Context, fromProfileID, toProfileID string) (int64, error)
	MarkConversationReadThrough(ctx context.Context, fromProfileID, toProfileID string, throughSeq int64) (int64, error)
}

// MatchGate decides whether two profiles may exchange messages
type MatchGate interface {
	IsMatched(ctx context.Context, profileA, profileB string) (bool, error)
}

// IdentityVerifier checks that a token entitles its bearer to act as a profile
type IdentityVerifier interface {
	VerifyProfileClaim(ctx context.Context, token, profileID string) error
}

// OfflineNotifier is told about messages whose receiver had no live session.
// It must not block.
type OfflineNotifier interface {
	NotifyOffline(msg *models.Message)
}

// JoinRequest is the payload of a join intent
type JoinRequest struct {
	ProfileID string `json:"profileId"`
	AuthToken string `json:"authToken"`
	// Token is the field name older clients send.
	Token string `json:"token,omitempty"`
}

func (r JoinRequest) token() string {
	if r.AuthToken != "" {
		return r.AuthToken
	}
	return r.Token
}

// SendMessageRequest is the payload of a sendMessage intent
type SendMessageRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// MarkReadRequest is the payload of a markAsRead intent
type MarkReadRequest struct {
	ProfileID      string `json:"profileId"`
	OtherProfileID string `json:"otherProfileId"`
}

// Caller is the authenticated origin of an intent. Session is nil for HTTP
// requests; acknowledgements then go to the caller's live session, if any.
type Caller struct {
	ProfileID string
	Session   *Session
}

// Relay authorizes, persists and fans out messaging and read-receipt events
type Relay struct {
	presence         *PresenceRegistry
	store            MessageStore
	gate             MatchGate
	identity         IdentityVerifier
	notifier         OfflineNotifier
	maxContentLength int
}

// NewRelay creates a relay. maxContentLength is in runes; zero disables the limit.
func NewRelay(
	presence *PresenceRegistry,
	store MessageStore,
	gate MatchGate,
	identity IdentityVerifier,
	maxContentLength int,
) *Relay {
	return &Relay{
		presence:         presence,
		store:            store,
		gate:             gate,
		identity:         identity,
		maxContentLength: maxContentLength,
	}
}

// WithOfflineNotifier sets the notifier used for offline receivers
func (r *Relay) WithOfflineNotifier(notifier OfflineNotifier) *Relay {
	r.notifier = notifier
	return r
}

// Presence returns the registry the relay fans out through
func (r *Relay) Presence() *PresenceRegistry {
	return r.presence
}

// Join authenticates the claimed profile and registers the session for it.
// A failed claim is fatal for the session; the caller should close it.
func (r *Relay) Join(ctx context.Context, session *Session, req JoinRequest) error {
	if req.ProfileID == "" {
		return apperrors.Identity("profileId is required")
	}
	if err := r.identity.VerifyProfileClaim(ctx, req.token(), req.ProfileID); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", session.ID()).
			Str("profile_id", req.ProfileID).
			Msg("Join rejected")
		if apperrors.Is(err, apperrors.CodeIdentity) {
			return err
		}
		return apperrors.Wrap(apperrors.CodeIdentity, "identity could not be verified", err)
	}

	if current := session.ProfileID(); current != "" && current != req.ProfileID {
		r.presence.Unregister(session)
	}
	session.setProfileID(req.ProfileID)

	if previous := r.presence.Register(req.ProfileID, session); previous != nil {
		previous.Close()
	}

	log.Info().
		Str("session_id", session.ID()).
		Str("profile_id", req.ProfileID).
		Msg("Profile joined")

	session.Send(Event{Type: EventJoined, Data: JoinedPayload{ProfileID: req.ProfileID}})
	return nil
}

// CallerFor returns the caller of intents read from session
func (r *Relay) CallerFor(session *Session) (Caller, error) {
	profileID := session.ProfileID()
	if profileID == "" {
		return Caller{}, apperrors.ErrNotJoined
	}
	return Caller{ProfileID: profileID, Session: session}, nil
}

// SendMessage validates, authorizes and stores a message, acknowledges it to
// the sender and delivers it to the receiver if online. Delivery is not
// retried; an offline receiver reads it from the store later.
func (r *Relay) SendMessage(ctx context.Context, caller Caller, req SendMessageRequest) (*models.Message, error) {
	if req.SenderID == "" {
		req.SenderID = caller.ProfileID
	}
	if req.SenderID != caller.ProfileID {
		return nil, apperrors.ErrProfileMismatch
	}
	if err := r.validateMessage(req); err != nil {
		return nil, err
	}

	matched, err := r.gate.IsMatched(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !matched {
		log.Info().
			Str("sender_id", req.SenderID).
			Str("receiver_id", req.ReceiverID).
			Msg("Message rejected, profiles not matched")
		return nil, apperrors.ErrNotMatched
	}

	msg, err := r.store.Append(ctx, req.SenderID, req.ReceiverID, req.Content)
	if err != nil {
		log.Error().
			Err(err).
			Str("sender_id", req.SenderID).
			Str("receiver_id", req.ReceiverID).
			Msg("Failed to store message")
		return nil, err
	}

	r.emitToCaller(caller, messageEvent(EventMessageSent, msg))

	delivered := false
	if receiver, ok := r.presence.Lookup(req.ReceiverID); ok {
		delivered = receiver.Send(messageEvent(EventNewMessage, msg))
	} else if r.notifier != nil {
		r.notifier.NotifyOffline(msg)
	}

	log.Info().
		Str("message_id", msg.ID).
		Str("sender_id", msg.SenderID).
		Str("receiver_id", msg.ReceiverID).
		Bool("delivered", delivered).
		Msg("Message sent")

	return msg, nil
}

// MarkRead marks the counterpart's messages to the caller as read, confirms
// to the caller, and tells the counterpart if online.
func (r *Relay) MarkRead(ctx context.Context, caller Caller, req MarkReadRequest) (int64, error) {
	if req.ProfileID == "" {
		req.ProfileID = caller.ProfileID
	}
	if req.ProfileID != caller.ProfileID {
		return 0, apperrors.ErrProfileMismatch
	}
	if req.OtherProfileID == "" {
		return 0, apperrors.ErrMissingProfile
	}
	if req.OtherProfileID == req.ProfileID {
		return 0, apperrors.ErrSelfMessage
	}

	marked, err := r.store.MarkConversationRead(ctx, req.OtherProfileID, req.ProfileID)
	if err != nil {
		log.Error().
			Err(err).
			Str("profile_id", req.ProfileID).
			Str("other_profile_id", req.OtherProfileID).
			Msg("Failed to mark conversation read")
		return 0, err
	}

	event := Event{Type: EventMessagesRead, Data: ReadPayload{ProfileID: req.ProfileID, OtherProfileID: req.OtherProfileID}}
	r.emitToCaller(caller, event)
	r.emitToProfile(req.OtherProfileID, event)

	log.Debug().
		Str("profile_id", req.ProfileID).
		Str("other_profile_id", req.OtherProfileID).
		Int64("marked", marked).
		Msg("Conversation marked read")

	return marked, nil
}

// FetchHistory returns the conversation between the caller and otherID as it
// was before this call, then marks otherID's messages to the caller as read.
// When anything was marked both parties receive messagesRead.
func (r *Relay) FetchHistory(ctx context.Context, caller Caller, otherID string) ([]*models.Message, error) {
	if otherID == "" {
		return nil, apperrors.ErrMissingProfile
	}
	if otherID == caller.ProfileID {
		return nil, apperrors.ErrSelfMessage
	}

	matched, err := r.gate.IsMatched(ctx, caller.ProfileID, otherID)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, apperrors.ErrNotMatched
	}

	messages, err := r.store.GetConversation(ctx, caller.ProfileID, otherID)
	if err != nil {
		return nil, err
	}

	// Only what this read returned is marked; later appends stay unread.
	var through int64
	for _, msg := range messages {
		if msg.SenderID == otherID && !msg.IsRead && msg.Seq > through {
			through = msg.Seq
		}
	}
	if through == 0 {
		return messages, nil
	}

	marked, err := r.store.MarkConversationReadThrough(ctx, otherID, caller.ProfileID, through)
	if err != nil {
		return nil, err
	}
	if marked > 0 {
		event := Event{Type: EventMessagesRead, Data: ReadPayload{ProfileID: caller.ProfileID, OtherProfileID: otherID}}
		r.emitToCaller(caller, event)
		r.emitToProfile(otherID, event)
	}

	return messages, nil
}

// Disconnect removes the session from presence. Stored state is untouched.
func (r *Relay) Disconnect(session *Session) {
	removed := r.presence.Unregister(session)
	session.Close()

	log.Info().
		Str("session_id", session.ID()).
		Str("profile_id", session.ProfileID()).
		Bool("removed", removed).
		Msg("Session disconnected")
}

// ReportError sends a failed intent's error to the originating session only
func (r *Relay) ReportError(session *Session, err error) {
	session.Send(Event{Type: EventError, Data: ErrorPayload{
		Message: apperrors.PublicMessage(err),
		Code:    string(apperrors.CodeOf(err)),
	}})
}

func (r *Relay) validateMessage(req SendMessageRequest) error {
	if req.ReceiverID == "" {
		return apperrors.ErrMissingProfile
	}
	if req.SenderID == req.ReceiverID {
		return apperrors.ErrSelfMessage
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperrors.ErrEmptyContent
	}
	if strings.ContainsRune(req.Content, 0) {
		return apperrors.ErrInvalidContent
	}
	if r.maxContentLength > 0 && utf8.RuneCountInString(req.Content) > r.maxContentLength {
		return apperrors.ErrContentTooLong
	}
	return nil
}

func (r *Relay) emitToCaller(caller Caller, event Event) {
	if caller.Session != nil {
		caller.Session.Send(event)
		return
	}
	r.emitToProfile(caller.ProfileID, event)
}

func (r *Relay) emitToProfile(profileID string, event Event) {
	if session, ok := r.presence.Lookup(profileID); ok {
		session.Send(event)
	}
}
