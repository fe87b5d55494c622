package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/pkg/logger"
)

// testConn returns a connection with no underlying socket and no write
// loop; payloads accumulate in its send buffer.
func testConn(userID string) *Connection {
	return NewConnection(userID, nil, 8)
}

func drain(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case payload := <-c.send:
			out = append(out, payload)
		default:
			return out
		}
	}
}

func TestJoinAndBroadcast(t *testing.T) {
	reg := NewRegistry(logger.NewNop())
	room := model.RoomID("alice", "bob")

	alice := testConn("alice")
	bob := testConn("bob")
	reg.Join(alice, room)
	reg.Join(bob, room)

	require.Equal(t, 2, reg.RoomSize(room))

	reg.Broadcast(room, []byte("hi"))

	require.Len(t, drain(alice), 1)
	require.Len(t, drain(bob), 1)
}

func TestBroadcast_DoesNotCrossRooms(t *testing.T) {
	reg := NewRegistry(logger.NewNop())

	alice := testConn("alice")
	carol := testConn("carol")
	reg.Join(alice, model.RoomID("alice", "bob"))
	reg.Join(carol, model.RoomID("carol", "dave"))

	reg.Broadcast(model.RoomID("alice", "bob"), []byte("private"))

	require.Len(t, drain(alice), 1)
	assert.Empty(t, drain(carol))
}

func TestMultipleConnectionsPerUser(t *testing.T) {
	reg := NewRegistry(logger.NewNop())
	room := model.RoomID("alice", "bob")

	tab1 := testConn("alice")
	tab2 := testConn("alice")
	reg.Join(tab1, room)
	reg.Join(tab2, room)

	reg.Broadcast(room, []byte("hello"))

	require.Len(t, drain(tab1), 1)
	require.Len(t, drain(tab2), 1)
}

func TestLeave_Idempotent(t *testing.T) {
	reg := NewRegistry(logger.NewNop())
	room := model.RoomID("alice", "bob")

	alice := testConn("alice")
	reg.Join(alice, room)
	require.Equal(t, 1, reg.RoomSize(room))

	reg.Leave(alice)
	assert.Equal(t, 0, reg.RoomSize(room))

	// Leaving again, or leaving a connection that never joined, is safe.
	reg.Leave(alice)
	reg.Leave(testConn("stranger"))

	reg.Broadcast(room, []byte("into the void"))
	assert.Empty(t, drain(alice))
}

func TestBroadcast_SkipsClosedConnections(t *testing.T) {
	reg := NewRegistry(logger.NewNop())
	room := model.RoomID("alice", "bob")

	alice := testConn("alice")
	bob := testConn("bob")
	reg.Join(alice, room)
	reg.Join(bob, room)

	bob.Close(1000, "gone")

	// A dead peer simply misses the event; nobody errors.
	reg.Broadcast(room, []byte("hi"))
	require.Len(t, drain(alice), 1)
	assert.True(t, bob.Closed())
}

func TestNotifyUser_ReachesAllUserConnections(t *testing.T) {
	reg := NewRegistry(logger.NewNop())

	tab1 := testConn("alice")
	tab2 := testConn("alice")
	bob := testConn("bob")
	reg.Join(tab1, model.RoomID("alice", "bob"))
	reg.Join(tab2, model.RoomID("alice", "bob"))
	reg.Join(bob, model.RoomID("alice", "bob"))

	reg.NotifyUser("alice", []byte("for alice"))

	require.Len(t, drain(tab1), 1)
	require.Len(t, drain(tab2), 1)
	assert.Empty(t, drain(bob))
}

func TestConversationStarted_SendsEnvelope(t *testing.T) {
	reg := NewRegistry(logger.NewNop())

	alice := testConn("alice")
	reg.Join(alice, model.RoomID("alice", "old-partner"))

	reg.ConversationStarted("alice", &model.Conversation{
		ID:           "conv-1",
		Language:     "English",
		Participants: [2]string{"alice", "bob"},
	})

	frames := drain(alice)
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), model.EventConversationStarted)
	assert.Contains(t, string(frames[0]), "conv-1")
}

func TestSend_BufferOverflowClosesConnection(t *testing.T) {
	conn := NewConnection("alice", nil, 2)

	require.NoError(t, conn.Send([]byte("1")))
	require.NoError(t, conn.Send([]byte("2")))

	// Third write overflows the buffer; the slow consumer is dropped
	// instead of blocking the broadcaster.
	err := conn.Send([]byte("3"))
	require.ErrorIs(t, err, ErrConnectionClosed)
	assert.True(t, conn.Closed())
}
