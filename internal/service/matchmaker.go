package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/internal/store"
	"github.com/imranmaj/language-chat/pkg/logger"
	"github.com/imranmaj/language-chat/pkg/metrics"
)

// Notifier pushes a match notification to a user who was waiting. Delivery
// is best-effort; the wait state itself is persisted, so an offline waiter
// discovers the match on their next current-conversation request.
type Notifier interface {
	ConversationStarted(userID string, conv *model.Conversation)
}

// NopNotifier discards notifications. Used in tests.
type NopNotifier struct{}

// ConversationStarted implements Notifier.
func (NopNotifier) ConversationStarted(string, *model.Conversation) {}

// Matchmaker maintains the per-language waiting pools and pairs compatible
// waiters into conversations. One mutex serializes all matching, so two
// concurrent requests for the same language cannot both end up waiting, nor
// race over the same waiter. Contention is low, matching is cheap.
type Matchmaker struct {
	store         *store.Store
	conversations *ConversationService
	notifier      Notifier
	logger        *logger.Logger

	mu   sync.Mutex
	pool map[string][]string // language -> waiting user ids, FIFO
}

// NewMatchmaker creates a matchmaker.
func NewMatchmaker(st *store.Store, convs *ConversationService, notifier Notifier, log *logger.Logger) *Matchmaker {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Matchmaker{
		store:         st,
		conversations: convs,
		notifier:      notifier,
		logger:        log,
		pool:          make(map[string][]string),
	}
}

// Rebuild repopulates the waiting pools from persisted user wait-state,
// preserving FIFO order by the time each user started waiting.
func (m *Matchmaker) Rebuild(ctx context.Context) error {
	waiting, err := m.store.FindWaitingUsers(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.pool = make(map[string][]string)
	for _, user := range waiting {
		m.pool[user.WaitingLanguage] = append(m.pool[user.WaitingLanguage], user.ID)
	}
	for lang, ids := range m.pool {
		metrics.WaitingUsers.WithLabelValues(lang).Set(float64(len(ids)))
	}
	m.mu.Unlock()

	m.logger.Info("waiting pool rebuilt", zap.Int("waiting_users", len(waiting)))
	return nil
}

// RequestConversation asks for a partner in the given language. If a
// compatible waiter exists the two are paired and the new conversation is
// returned with matched=true; otherwise the caller joins the waiting pool
// and matched is false. Any active conversation the caller holds is ended
// first, and any previous pool entry of theirs is silently retracted.
func (m *Matchmaker) RequestConversation(ctx context.Context, userID, language string) (*model.Conversation, bool, error) {
	if !model.ValidLanguage(language) {
		return nil, false, ErrInvalidLanguage
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if active, err := m.conversations.Active(ctx, userID); err == nil {
		if err := m.conversations.Deactivate(ctx, active.ID); err != nil {
			return nil, false, err
		}
	}

	// A user never occupies two pool entries.
	m.retract(userID)

	if other, ok := m.takeWaiter(language, userID); ok {
		// The store clears both participants' wait-state in the same
		// transaction that creates the conversation.
		conv, err := m.conversations.Create(ctx, [2]string{other, userID}, language)
		if err != nil {
			// Pairing failed; put the waiter back at the head.
			m.pool[language] = append([]string{other}, m.pool[language]...)
			metrics.WaitingUsers.WithLabelValues(language).Set(float64(len(m.pool[language])))
			return nil, false, err
		}

		metrics.MatchesTotal.WithLabelValues(language).Inc()
		m.logger.Info("users matched",
			zap.String("conversation_id", conv.ID),
			zap.String("language", language),
		)

		go m.notifier.ConversationStarted(other, conv)
		return conv, true, nil
	}

	user, err := m.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	user.WaitingLanguage = language
	user.WaitingSince = time.Now().UTC()
	if err := m.store.UpdateUser(ctx, user); err != nil {
		return nil, false, err
	}

	m.pool[language] = append(m.pool[language], userID)
	metrics.WaitingUsers.WithLabelValues(language).Set(float64(len(m.pool[language])))

	m.logger.Info("user waiting for partner", zap.String("language", language))
	return nil, false, nil
}

// Waiting reports the language the user is currently queued for, if any.
func (m *Matchmaker) Waiting(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for lang, ids := range m.pool {
		for _, id := range ids {
			if id == userID {
				return lang, true
			}
		}
	}
	return "", false
}

// takeWaiter pops the first waiter for language that is not self.
// Caller must hold m.mu.
func (m *Matchmaker) takeWaiter(language, self string) (string, bool) {
	ids := m.pool[language]
	for i, id := range ids {
		if id != self {
			m.pool[language] = append(ids[:i:i], ids[i+1:]...)
			metrics.WaitingUsers.WithLabelValues(language).Set(float64(len(m.pool[language])))
			return id, true
		}
	}
	return "", false
}

// retract removes the user from whatever pool entry they hold.
// Caller must hold m.mu.
func (m *Matchmaker) retract(userID string) {
	for lang, ids := range m.pool {
		for i, id := range ids {
			if id == userID {
				m.pool[lang] = append(ids[:i:i], ids[i+1:]...)
				metrics.WaitingUsers.WithLabelValues(lang).Set(float64(len(m.pool[lang])))
				return
			}
		}
	}
}
