package models

import "time"

// User is the account that owns a profile. Owned by the account layer;
// the relay only reads it to verify identity claims and push tokens.
type User struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	PushToken *string   `json:"pushToken,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Match is an immutable record of mutual interest between two profiles.
// ProfileAID is always the lexicographically smaller id.
type Match struct {
	ID         string    `json:"id"`
	ProfileAID string    `json:"profileAId"`
	ProfileBID string    `json:"profileBId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Message is a stored chat message between two matched profiles
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"isRead"`
	// Seq is the store insertion order, used to break timestamp ties.
	Seq int64 `json:"-"`
}

// LastMessage is the preview shown in a conversation list
type LastMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
	IsFromMe  bool      `json:"isFromMe"`
}

// ProfileCard is the public slice of a profile shown next to a conversation
type ProfileCard struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

// ConversationSummary is one entry of a profile's conversation list
type ConversationSummary struct {
	ProfileID   string       `json:"profileId"`
	LastMessage LastMessage  `json:"lastMessage"`
	UnreadCount int          `json:"unreadCount"`
	Profile     *ProfileCard `json:"profile,omitempty"`
}
