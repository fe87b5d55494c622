package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/imranmaj/language-chat/internal/middleware"
	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/internal/service"
	"github.com/imranmaj/language-chat/pkg/logger"
)

// ConversationHandler handles matchmaking and conversation endpoints.
type ConversationHandler struct {
	matchmaker    *service.Matchmaker
	conversations *service.ConversationService
	relay         *service.Relay
	logger        *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(
	mm *service.Matchmaker,
	convs *service.ConversationService,
	relay *service.Relay,
	log *logger.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		matchmaker:    mm,
		conversations: convs,
		relay:         relay,
		logger:        log,
	}
}

// Request handles POST /api/v1/conversations: ask the matchmaker for a
// partner. Responds 201 with the conversation when paired immediately, or
// 202 when the caller entered the waiting pool.
func (h *ConversationHandler) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.RequestConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, matched, err := h.matchmaker.RequestConversation(ctx, userID, req.Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !matched {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":   "waiting",
			"language": req.Language,
		})
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// Current handles GET /api/v1/conversations/current: the active
// conversation with its trailing history window.
func (h *ConversationHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	resp, _, err := h.relay.History(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// End handles POST /api/v1/conversations/current/end: explicitly end the
// active conversation.
func (h *ConversationHandler) End(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.conversations.End(ctx, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v1/conversations: past conversations, latest
// first.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	resp, err := h.conversations.Past(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/conversations/{id}: review a conversation the
// caller participated in. Unknown id is 404; someone else's conversation is
// 403.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	convID := chi.URLParam(r, "id")

	resp, err := h.conversations.Get(ctx, userID, convID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
