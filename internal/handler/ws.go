package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/imranmaj/language-chat/internal/middleware"
	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/internal/realtime"
	"github.com/imranmaj/language-chat/internal/service"
	"github.com/imranmaj/language-chat/pkg/logger"
	"github.com/imranmaj/language-chat/pkg/metrics"
)

// WSHandler upgrades live-session connections and runs their event loop.
type WSHandler struct {
	relay         *service.Relay
	conversations *service.ConversationService
	registry      *realtime.Registry
	logger        *logger.Logger
	sendBuffer    int

	upgrader websocket.Upgrader
}

// NewWSHandler creates a websocket handler.
func NewWSHandler(
	relay *service.Relay,
	convs *service.ConversationService,
	registry *realtime.Registry,
	log *logger.Logger,
	sendBuffer int,
) *WSHandler {
	return &WSHandler{
		relay:         relay,
		conversations: convs,
		registry:      registry,
		logger:        log,
		sendBuffer:    sendBuffer,
		upgrader: websocket.Upgrader{
			// Browsers enforce same-origin on the HTTP surface via
			// CORS; the socket is authenticated by bearer token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws. Connecting requires an active conversation; the
// connection is joined to the conversation's room and then relays events
// until the client goes away.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	conv, err := h.conversations.Active(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := realtime.NewConnection(userID, ws, h.sendBuffer)
	h.registry.Join(conn, conv.Room())
	conn.Start()
	metrics.IncrementWSConnections()

	log := h.logger.WithUser(userID).With(
		zap.String("username", middleware.GetUsername(ctx)),
	)

	// Backfill cursor is per-connection state, initialized for this
	// conversation and owned by this read loop.
	sess := h.relay.NewSession(conv)

	defer func() {
		h.registry.Leave(conn)
		conn.Close(websocket.CloseNormalClosure, "")
		metrics.DecrementWSConnections()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Debug("malformed frame")
			continue
		}

		switch env.Event {
		case model.EventSendMessage:
			var payload model.SendMessagePayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				continue
			}
			if _, err := h.relay.Send(ctx, userID, payload.Content); err != nil {
				log.Warn("message relay failed", zap.Error(err))
			}

		case model.EventLoadPreviousMessage:
			// The scroll flag is client bookkeeping; backfill frames
			// always carry scroll=true.
			frame, err := h.relay.LoadPrevious(ctx, sess)
			if err != nil {
				log.Warn("backfill failed", zap.Error(err))
				continue
			}
			if frame != nil {
				_ = conn.Send(frame)
			}

		default:
			log.Debug("unknown event", zap.String("event", env.Event))
		}
	}
}
