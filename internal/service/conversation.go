package service

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/internal/store"
	"github.com/imranmaj/language-chat/pkg/logger"
	"github.com/imranmaj/language-chat/pkg/metrics"
)

// ConversationService owns the conversation lifecycle. It keeps an in-memory
// index from user id to their active conversation so the hot-path lookup is
// O(1); the index is rebuilt from the store on startup. The hard invariant
// it enforces is at most one active conversation per user.
type ConversationService struct {
	store  *store.Store
	logger *logger.Logger

	mu           sync.RWMutex
	activeByUser map[string]string // userID -> conversationID
}

// NewConversationService creates a conversation service.
func NewConversationService(st *store.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:        st,
		logger:       log,
		activeByUser: make(map[string]string),
	}
}

// Rebuild repopulates the active-conversation index from the store.
func (s *ConversationService) Rebuild(ctx context.Context) error {
	convs, err := s.store.FindActiveConversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.activeByUser = make(map[string]string, 2*len(convs))
	for _, conv := range convs {
		s.activeByUser[conv.Participants[0]] = conv.ID
		s.activeByUser[conv.Participants[1]] = conv.ID
	}
	s.mu.Unlock()

	metrics.ActiveConversations.Set(float64(len(convs)))
	s.logger.Info("active conversation index rebuilt", zap.Int("conversations", len(convs)))
	return nil
}

// Active returns the user's single active conversation, or ErrNoActiveSession.
func (s *ConversationService) Active(ctx context.Context, userID string) (*model.Conversation, error) {
	s.mu.RLock()
	convID, ok := s.activeByUser[userID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNoActiveSession
	}

	conv, err := s.store.FindConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.Active {
		// Store and index disagree; trust the store.
		s.unindex(conv)
		return nil, ErrNoActiveSession
	}
	return conv, nil
}

// Create starts a new active conversation between two participants. Any
// active conversation either participant still holds is ended first so the
// one-active invariant cannot be violated.
func (s *ConversationService) Create(ctx context.Context, participants [2]string, language string) (*model.Conversation, error) {
	for _, userID := range participants {
		if existing, err := s.Active(ctx, userID); err == nil {
			if err := s.Deactivate(ctx, existing.ID); err != nil {
				return nil, err
			}
		}
	}

	conv, err := s.store.CreateConversation(ctx, participants, language)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.activeByUser[participants[0]] = conv.ID
	s.activeByUser[participants[1]] = conv.ID
	s.mu.Unlock()

	metrics.ActiveConversations.Inc()
	return conv, nil
}

// Deactivate ends a conversation. Ended conversations never become active
// again.
func (s *ConversationService) Deactivate(ctx context.Context, convID string) error {
	conv, err := s.store.DeactivateConversation(ctx, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if s.unindex(conv) {
		metrics.ActiveConversations.Dec()
	}
	return nil
}

// End ends the caller's active conversation.
func (s *ConversationService) End(ctx context.Context, userID string) error {
	conv, err := s.Active(ctx, userID)
	if err != nil {
		return err
	}
	return s.Deactivate(ctx, conv.ID)
}

// Get returns a conversation with its full history, with the authorization
// check the review page needs: ErrNotFound for an unknown id, ErrForbidden
// when the requester is not a participant.
func (s *ConversationService) Get(ctx context.Context, userID, convID string) (*model.ConversationResponse, error) {
	conv, err := s.store.FindConversation(ctx, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrForbidden
	}

	msgs, err := s.store.FindMessagesByConversation(ctx, convID)
	if err != nil {
		return nil, err
	}

	return &model.ConversationResponse{Conversation: conv, Messages: msgs}, nil
}

// Past returns the user's ended conversations, latest first.
func (s *ConversationService) Past(ctx context.Context, userID string) (*model.ListConversationsResponse, error) {
	convs, err := s.store.FindConversationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	past := lo.Filter(convs, func(c model.Conversation, _ int) bool {
		return !c.Active
	})

	return &model.ListConversationsResponse{
		Conversations: past,
		Total:         len(past),
	}, nil
}

// unindex drops both participants' index entries if they still point at this
// conversation. Reports whether anything was removed.
func (s *ConversationService) unindex(conv *model.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for _, userID := range conv.Participants {
		if s.activeByUser[userID] == conv.ID {
			delete(s.activeByUser, userID)
			removed = true
		}
	}
	return removed
}
