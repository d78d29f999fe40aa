package repository

import (
	"context"
	"time"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MessageRepository is the durable, append-only message log
type MessageRepository struct {
	db  DB
	now func() time.Time
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db, now: time.Now}
}

// Append stores a new unread message. The stored timestamp never goes below
// the latest one already stored for the same sender→receiver stream, so a
// clock step backwards cannot reorder a stream.
func (r *MessageRepository) Append(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at, is_read)
		SELECT $1::uuid, $2::text, $3::text, $4::text, GREATEST($5::timestamptz, COALESCE(MAX(created_at), $5::timestamptz)), false
		FROM messages
		WHERE sender_id = $2 AND receiver_id = $3
		RETURNING seq, created_at
	`
	msg := &models.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	err := r.db.QueryRow(ctx, query, msg.ID, senderID, receiverID, content, r.now().UTC()).
		Scan(&msg.Seq, &msg.Timestamp)
	if err != nil {
		return nil, apperrors.Persistence("failed to store message", err)
	}
	return msg, nil
}

// GetConversation returns every message exchanged between a and b in either
// direction, oldest first, ties broken by insertion order.
func (r *MessageRepository) GetConversation(ctx context.Context, profileA, profileB string) ([]*models.Message, error) {
	query := `
		SELECT id, seq, sender_id, receiver_id, content, created_at, is_read
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := r.db.Query(ctx, query, profileA, profileB)
	if err != nil {
		return nil, apperrors.Persistence("failed to get conversation", err)
	}
	return scanMessages(rows)
}

// MarkConversationRead flags every unread from→to message as read and
// returns how many changed.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, fromProfileID, toProfileID string) (int64, error) {
	query := `
		UPDATE messages SET is_read = true
		WHERE sender_id = $1 AND receiver_id = $2 AND is_read = false
	`
	result, err := r.db.Exec(ctx, query, fromProfileID, toProfileID)
	if err != nil {
		return 0, apperrors.Persistence("failed to mark conversation read", err)
	}
	return result.RowsAffected(), nil
}

// MarkConversationReadThrough is MarkConversationRead limited to messages
// stored at or before throughSeq. Messages appended after a history read
// stay unread.
func (r *MessageRepository) MarkConversationReadThrough(ctx context.Context, fromProfileID, toProfileID string, throughSeq int64) (int64, error) {
	query := `
		UPDATE messages SET is_read = true
		WHERE sender_id = $1 AND receiver_id = $2 AND is_read = false AND seq <= $3
	`
	result, err := r.db.Exec(ctx, query, fromProfileID, toProfileID, throughSeq)
	if err != nil {
		return 0, apperrors.Persistence("failed to mark conversation read", err)
	}
	return result.RowsAffected(), nil
}

// GetConversationsForProfile groups every message touching profileID by
// counterpart, newest conversation first.
func (r *MessageRepository) GetConversationsForProfile(ctx context.Context, profileID string) ([]*models.ConversationSummary, error) {
	query := `
		SELECT id, seq, sender_id, receiver_id, content, created_at, is_read
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	rows, err := r.db.Query(ctx, query, profileID)
	if err != nil {
		return nil, apperrors.Persistence("failed to get conversations", err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	return GroupConversations(profileID, messages), nil
}

func scanMessages(rows pgx.Rows) ([]*models.Message, error) {
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID, &msg.Seq, &msg.SenderID, &msg.ReceiverID,
			&msg.Content, &msg.Timestamp, &msg.IsRead,
		)
		if err != nil {
			return nil, apperrors.Persistence("failed to scan message", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("error iterating messages", err)
	}

	return messages, nil
}

// GroupConversations folds messages, newest first, into one summary per
// counterpart. The first message seen for a counterpart is its preview, so
// the result keeps newest-conversation-first order.
func GroupConversations(profileID string, newestFirst []*models.Message) []*models.ConversationSummary {
	index := make(map[string]*models.ConversationSummary)
	summaries := []*models.ConversationSummary{}

	for _, msg := range newestFirst {
		fromMe := msg.SenderID == profileID
		other := msg.SenderID
		if fromMe {
			other = msg.ReceiverID
		}

		summary, ok := index[other]
		if !ok {
			summary = &models.ConversationSummary{
				ProfileID: other,
				LastMessage: models.LastMessage{
					Content:   msg.Content,
					Timestamp: msg.Timestamp,
					IsRead:    msg.IsRead,
					IsFromMe:  fromMe,
				},
			}
			index[other] = summary
			summaries = append(summaries, summary)
		}
		if !fromMe && !msg.IsRead {
			summary.UnreadCount++
		}
	}

	return summaries
}
