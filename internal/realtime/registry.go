package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/pkg/logger"
)

// Registry maps room ids to the live connections subscribed to them. One
// mutex serializes joins, leaves and broadcast reads so a broadcast can
// neither miss a concurrently joining connection nor hit one mid-removal.
// A user may hold several connections (tabs); all of them receive
// broadcasts.
type Registry struct {
	logger *logger.Logger

	mu     sync.RWMutex
	rooms  map[string]map[*Connection]struct{}
	conns  map[*Connection]string // connection -> room id
	byUser map[string]map[*Connection]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		logger: log,
		rooms:  make(map[string]map[*Connection]struct{}),
		conns:  make(map[*Connection]string),
		byUser: make(map[string]map[*Connection]struct{}),
	}
}

// Join registers the connection under the given room. The caller is
// responsible for having verified the user's active conversation.
func (r *Registry) Join(conn *Connection, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[*Connection]struct{})
	}
	r.rooms[roomID][conn] = struct{}{}
	r.conns[conn] = roomID

	if r.byUser[conn.UserID] == nil {
		r.byUser[conn.UserID] = make(map[*Connection]struct{})
	}
	r.byUser[conn.UserID][conn] = struct{}{}

	r.logger.Debug("connection joined room",
		zap.String("room_id", roomID),
		zap.String("user_id", conn.UserID),
	)
}

// Leave removes the connection from whatever room it is in. It is
// idempotent: leaving with an unknown or already-removed connection does
// nothing.
func (r *Registry) Leave(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.conns[conn]
	if !ok {
		return
	}
	delete(r.conns, conn)

	if members := r.rooms[roomID]; members != nil {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if conns := r.byUser[conn.UserID]; conns != nil {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
}

// Broadcast delivers payload to every live connection in the room.
// Delivery is best-effort: a dead or slow peer is skipped, never retried.
func (r *Registry) Broadcast(roomID string, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for conn := range r.rooms[roomID] {
		_ = conn.Send(payload)
	}
}

// NotifyUser pushes payload to all of a user's live connections, in
// whatever rooms they are. Best-effort, like Broadcast.
func (r *Registry) NotifyUser(userID string, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for conn := range r.byUser[userID] {
		_ = conn.Send(payload)
	}
}

// ConversationStarted implements service.Notifier: it tells a freshly
// matched waiter, on whatever sockets they still have open, that their
// conversation exists.
func (r *Registry) ConversationStarted(userID string, conv *model.Conversation) {
	payload, err := model.NewEvent(model.EventConversationStarted, model.ConversationStartedPayload{
		ConversationID: conv.ID,
		Language:       conv.Language,
	})
	if err != nil {
		return
	}
	r.NotifyUser(userID, payload)
}

// RoomSize reports how many connections are registered under a room.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
