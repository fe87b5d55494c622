package model

import (
	"time"
)

// Languages available for matchmaking.
var Languages = []string{"English", "Chinese", "Spanish"}

// ValidLanguage reports whether lang is one of the supported languages.
func ValidLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Conversation represents a one-on-one chat session between exactly two
// users. Conversations are created by the matchmaker, only ever mutated to
// append messages or to end, and never deleted.
type Conversation struct {
	ID           string    `json:"id"`
	Language     string    `json:"language"`
	Active       bool      `json:"active"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitempty"`
	Participants [2]string `json:"participants"`

	// MessageCount doubles as the next message sequence number; the
	// store increments it under the same transaction that appends.
	MessageCount int `json:"message_count"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// Room returns the deterministic room identifier for the conversation.
func (c *Conversation) Room() string {
	return RoomID(c.Participants[0], c.Participants[1])
}

// RoomID derives a room identifier from two user identities. The ids are
// ordered canonically so both sides compute the same room without
// coordination, and distinct pairs never collide.
func RoomID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "-" + b
}

// RequestConversationRequest asks the matchmaker for a partner.
type RequestConversationRequest struct {
	Language string `json:"language" validate:"required"`
}

// ConversationResponse is a conversation plus its (windowed) history.
type ConversationResponse struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []Message     `json:"messages"`
}

// ListConversationsResponse lists a user's past conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
