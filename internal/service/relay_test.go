package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/internal/store"
	"github.com/imranmaj/language-chat/pkg/logger"
)

// recordingBroadcaster captures broadcasts and, at broadcast time, checks
// whether the message was already persisted.
type recordingBroadcaster struct {
	t      *testing.T
	st     *store.Store
	convID string

	frames             [][]byte
	rooms              []string
	persistedOnArrival []bool
}

func (b *recordingBroadcaster) Broadcast(roomID string, payload []byte) {
	b.rooms = append(b.rooms, roomID)
	b.frames = append(b.frames, payload)

	var env model.Envelope
	require.NoError(b.t, json.Unmarshal(payload, &env))
	var msg model.MessagePayload
	require.NoError(b.t, json.Unmarshal(env.Data, &msg))

	// Look the broadcast content up in the store: persist must come first.
	found := false
	if b.convID != "" {
		msgs, err := b.st.FindMessagesByConversation(context.Background(), b.convID)
		require.NoError(b.t, err)
		for _, m := range msgs {
			if m.Content == msg.Content {
				found = true
				break
			}
		}
	}
	b.persistedOnArrival = append(b.persistedOnArrival, found)
}

func decodeFrame(t *testing.T, frame []byte) (string, model.MessagePayload) {
	t.Helper()

	var env model.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	var payload model.MessagePayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return env.Event, payload
}

func setupRelay(t *testing.T, window int) (*Relay, *store.Store, *ConversationService, *recordingBroadcaster) {
	t.Helper()

	st := newTestStore(t)
	convs := NewConversationService(st, logger.NewNop())
	rooms := &recordingBroadcaster{t: t, st: st}
	relay := NewRelay(st, convs, rooms, logger.NewNop(), window, 0)
	return relay, st, convs, rooms
}

func TestSend_PersistsThenBroadcasts(t *testing.T) {
	relay, st, convs, rooms := setupRelay(t, 0)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	conv, err := convs.Create(ctx, [2]string{alice.ID, bob.ID}, "English")
	require.NoError(t, err)
	rooms.convID = conv.ID

	msg, err := relay.Send(ctx, alice.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, 0, msg.Seq)

	require.Len(t, rooms.frames, 1)
	assert.Equal(t, conv.Room(), rooms.rooms[0])
	assert.True(t, rooms.persistedOnArrival[0], "message must be durable before any peer observes it")

	event, payload := decodeFrame(t, rooms.frames[0])
	assert.Equal(t, model.EventReceiveNewMessage, event)
	assert.Equal(t, "alice", payload.Username)
	assert.Equal(t, "hi", payload.Content)
	assert.False(t, payload.Scroll)
}

func TestSend_Validation(t *testing.T) {
	relay, st, convs, _ := setupRelay(t, 0)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	_, err := convs.Create(ctx, [2]string{alice.ID, bob.ID}, "English")
	require.NoError(t, err)

	_, err = relay.Send(ctx, alice.ID, "")
	require.ErrorIs(t, err, ErrEmptyMessage)

	long := make([]rune, model.MaxMessageLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = relay.Send(ctx, alice.ID, string(long))
	require.ErrorIs(t, err, ErrMessageTooLong)
}

func TestSend_ConfiguredMaxLength(t *testing.T) {
	st := newTestStore(t)
	convs := NewConversationService(st, logger.NewNop())
	rooms := &recordingBroadcaster{t: t, st: st}
	relay := NewRelay(st, convs, rooms, logger.NewNop(), 0, 10)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	_, err := convs.Create(ctx, [2]string{alice.ID, bob.ID}, "English")
	require.NoError(t, err)

	_, err = relay.Send(ctx, alice.ID, "exactly 10")
	require.NoError(t, err)

	_, err = relay.Send(ctx, alice.ID, "eleven chars")
	require.ErrorIs(t, err, ErrMessageTooLong)
}

func TestSend_RequiresActiveConversation(t *testing.T) {
	relay, st, _, _ := setupRelay(t, 0)

	loner := createUser(t, st, "loner")
	_, err := relay.Send(context.Background(), loner.ID, "anyone there?")
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestHistory_WindowAndBackfill(t *testing.T) {
	relay, st, convs, rooms := setupRelay(t, 100)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	conv, err := convs.Create(ctx, [2]string{alice.ID, bob.ID}, "English")
	require.NoError(t, err)
	rooms.convID = conv.ID

	for i := 0; i < 150; i++ {
		_, err := st.AppendMessage(ctx, conv.ID, alice.ID, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	resp, sess, err := relay.History(ctx, alice.ID)
	require.NoError(t, err)

	// The last 100 messages, in chronological order.
	require.Len(t, resp.Messages, 100)
	assert.Equal(t, "msg-50", resp.Messages[0].Content)
	assert.Equal(t, "msg-149", resp.Messages[99].Content)
	assert.Equal(t, 49, sess.Cursor)

	// First backfill step returns message #49, scroll-tagged.
	frame, err := relay.LoadPrevious(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, frame)

	event, payload := decodeFrame(t, frame)
	assert.Equal(t, model.EventReceivePrevMessage, event)
	assert.Equal(t, "msg-49", payload.Content)
	assert.True(t, payload.Scroll)
	assert.Equal(t, 48, sess.Cursor)

	// 49 more steps drain the history down to message #0.
	for i := 0; i < 49; i++ {
		frame, err := relay.LoadPrevious(ctx, sess)
		require.NoError(t, err)
		require.NotNil(t, frame)
	}
	assert.Equal(t, -1, sess.Cursor)

	// The 51st call and every call after it emit nothing.
	for i := 0; i < 3; i++ {
		frame, err := relay.LoadPrevious(ctx, sess)
		require.NoError(t, err)
		assert.Nil(t, frame)
	}
	assert.Equal(t, -1, sess.Cursor)
}

func TestHistory_ShortConversation(t *testing.T) {
	relay, st, convs, _ := setupRelay(t, 100)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	conv, err := convs.Create(ctx, [2]string{alice.ID, bob.ID}, "Spanish")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := st.AppendMessage(ctx, conv.ID, bob.ID, fmt.Sprintf("hola-%d", i))
		require.NoError(t, err)
	}

	resp, sess, err := relay.History(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 5)
	assert.Negative(t, sess.Cursor)

	// Nothing to backfill.
	frame, err := relay.LoadPrevious(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, frame)
}

func TestMessageOrdering_AcrossSenders(t *testing.T) {
	relay, st, convs, rooms := setupRelay(t, 100)
	ctx := context.Background()

	alice := createUser(t, st, "alice")
	bob := createUser(t, st, "bob")
	conv, err := convs.Create(ctx, [2]string{alice.ID, bob.ID}, "English")
	require.NoError(t, err)
	rooms.convID = conv.ID

	_, err = relay.Send(ctx, alice.ID, "first")
	require.NoError(t, err)
	_, err = relay.Send(ctx, bob.ID, "second")
	require.NoError(t, err)

	msgs, err := st.FindMessagesByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.False(t, msgs[1].CreatedAt.Before(msgs[0].CreatedAt))
}
