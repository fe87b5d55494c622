package service

import (
	"context"
	"errors"

	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/internal/store"
	"github.com/imranmaj/language-chat/pkg/logger"
	"github.com/imranmaj/language-chat/pkg/metrics"
)

// DefaultHistoryWindow is how many trailing messages a freshly opened
// session sees before backfill kicks in.
const DefaultHistoryWindow = 100

// Broadcaster fans an event out to the live connections of a room.
// Implemented by realtime.Registry.
type Broadcaster interface {
	Broadcast(roomID string, payload []byte)
}

// Session is the per-connection backfill state: a monotonically decreasing
// cursor into the conversation's message sequence. It must never be shared
// across connections and is reset whenever a conversation is loaded.
type Session struct {
	ConversationID string
	Cursor         int
}

// Relay accepts outgoing messages, persists them, and fans them out to the
// conversation's room. It also serves the paginated history backfill.
type Relay struct {
	store         *store.Store
	conversations *ConversationService
	rooms         Broadcaster
	logger        *logger.Logger
	historyWindow int
	maxMessageLen int
}

// NewRelay creates a message relay. A non-positive historyWindow or
// maxMessageLen selects the default.
func NewRelay(st *store.Store, convs *ConversationService, rooms Broadcaster, log *logger.Logger, historyWindow, maxMessageLen int) *Relay {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	if maxMessageLen <= 0 {
		maxMessageLen = model.MaxMessageLength
	}
	return &Relay{
		store:         st,
		conversations: convs,
		rooms:         rooms,
		logger:        log,
		historyWindow: historyWindow,
		maxMessageLen: maxMessageLen,
	}
}

// Send persists a message in the sender's active conversation, then
// broadcasts it to the room. Persist-before-broadcast is load-bearing: a
// peer must never observe a message that is not durably recorded.
func (r *Relay) Send(ctx context.Context, userID, content string) (*model.Message, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(content)) > r.maxMessageLen {
		return nil, ErrMessageTooLong
	}

	conv, err := r.conversations.Active(ctx, userID)
	if err != nil {
		return nil, err
	}

	author, err := r.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg, err := r.store.AppendMessage(ctx, conv.ID, userID, content)
	if err != nil {
		return nil, err
	}

	payload, err := model.MessageEvent(author.Username, msg, false)
	if err != nil {
		return nil, err
	}
	r.rooms.Broadcast(conv.Room(), payload)

	metrics.MessagesTotal.WithLabelValues(conv.Language).Inc()
	return msg, nil
}

// History returns the user's active conversation with its trailing window of
// messages in chronological order, plus a Session whose cursor points at the
// newest message not included in the window.
func (r *Relay) History(ctx context.Context, userID string) (*model.ConversationResponse, *Session, error) {
	conv, err := r.conversations.Active(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := r.store.FindMessagesByConversation(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(msgs) > r.historyWindow {
		msgs = msgs[len(msgs)-r.historyWindow:]
	}

	sess := &Session{
		ConversationID: conv.ID,
		Cursor:         conv.MessageCount - r.historyWindow - 1,
	}

	return &model.ConversationResponse{Conversation: conv, Messages: msgs}, sess, nil
}

// NewSession builds backfill state for a freshly joined connection.
func (r *Relay) NewSession(conv *model.Conversation) *Session {
	return &Session{
		ConversationID: conv.ID,
		Cursor:         conv.MessageCount - r.historyWindow - 1,
	}
}

// LoadPrevious emits one step of backward pagination: the wire payload for
// the message at the session cursor, tagged with a scroll hint. Once the
// cursor runs off the start of the conversation it returns (nil, nil),
// meaning end of history rather than an error, and stays there.
func (r *Relay) LoadPrevious(ctx context.Context, sess *Session) ([]byte, error) {
	if sess.Cursor < 0 {
		return nil, nil
	}

	msg, err := r.store.MessageAt(ctx, sess.ConversationID, sess.Cursor)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sess.Cursor = -1
			return nil, nil
		}
		return nil, err
	}

	author, err := r.store.FindUserByID(ctx, msg.AuthorID)
	if err != nil {
		return nil, err
	}

	payload, err := model.MessageEvent(author.Username, msg, true)
	if err != nil {
		return nil, err
	}

	sess.Cursor--
	return payload, nil
}
