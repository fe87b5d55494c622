package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomID_Symmetric(t *testing.T) {
	a := uuid.NewString()
	b := uuid.NewString()

	require.Equal(t, RoomID(a, b), RoomID(b, a))
}

func TestRoomID_DistinctPartnersDoNotCollide(t *testing.T) {
	a := uuid.NewString()
	b := uuid.NewString()
	c := uuid.NewString()

	require.NotEqual(t, RoomID(a, b), RoomID(a, c))
	require.NotEqual(t, RoomID(a, b), RoomID(b, c))
}

func TestConversation_Participants(t *testing.T) {
	conv := &Conversation{Participants: [2]string{"alice", "bob"}}

	assert.True(t, conv.HasParticipant("alice"))
	assert.True(t, conv.HasParticipant("bob"))
	assert.False(t, conv.HasParticipant("mallory"))

	assert.Equal(t, "bob", conv.OtherParticipant("alice"))
	assert.Equal(t, "alice", conv.OtherParticipant("bob"))

	assert.Equal(t, RoomID("alice", "bob"), conv.Room())
}

func TestValidLanguage(t *testing.T) {
	for _, lang := range Languages {
		assert.True(t, ValidLanguage(lang))
	}
	assert.False(t, ValidLanguage("Klingon"))
	assert.False(t, ValidLanguage(""))
}
