package store

import (
	"context"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/imranmaj/language-chat/internal/model"
)

// CreateConversation creates an active conversation between exactly two
// participants and clears both participants' wait-state, all in one
// transaction so a failed pairing leaves no partial state.
func (s *Store) CreateConversation(ctx context.Context, participants [2]string, language string) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:           uuid.NewString(),
		Language:     language,
		Active:       true,
		StartedAt:    time.Now().UTC(),
		Participants: participants,
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, userID := range participants {
			rec, err := get[userRecord](txn, prefixUserByID+userID)
			if err != nil {
				return err
			}
			if rec.IsWaiting() {
				rec.WaitingLanguage = ""
				rec.WaitingSince = time.Time{}
				if err := set(txn, prefixUserByID+userID, rec); err != nil {
					return err
				}
			}
			if err := txn.Set([]byte(prefixUserConv+userID+":"+conv.ID), nil); err != nil {
				return err
			}
		}
		return set(txn, prefixConv+conv.ID, conv)
	})
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// FindConversation looks up a conversation by id.
func (s *Store) FindConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv *model.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		c, err := get[model.Conversation](txn, prefixConv+id)
		if err != nil {
			return err
		}
		conv = c
		return nil
	})
	return conv, err
}

// DeactivateConversation transitions a conversation out of the active state
// and stamps its end time. Deactivating an already-ended conversation is a
// no-op.
func (s *Store) DeactivateConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv *model.Conversation
	err := s.db.Update(func(txn *badger.Txn) error {
		c, err := get[model.Conversation](txn, prefixConv+id)
		if err != nil {
			return err
		}
		if c.Active {
			c.Active = false
			c.EndedAt = time.Now().UTC()
			if err := set(txn, prefixConv+id, c); err != nil {
				return err
			}
		}
		conv = c
		return nil
	})
	return conv, err
}

// FindConversationsByUser returns every conversation the user participates
// in, most recently started first.
func (s *Store) FindConversationsByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	var convs []model.Conversation

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixUserConv + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			convID := string(it.Item().Key()[len(prefix):])
			c, err := get[model.Conversation](txn, prefixConv+convID)
			if err != nil {
				return err
			}
			convs = append(convs, *c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].StartedAt.After(convs[j].StartedAt)
	})
	return convs, nil
}

// FindActiveConversations returns all currently active conversations. Used
// to rebuild the per-user active index on startup.
func (s *Store) FindActiveConversations(ctx context.Context) ([]model.Conversation, error) {
	var convs []model.Conversation

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixConv)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var conv model.Conversation
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &conv)
			}); err != nil {
				return err
			}
			if conv.Active {
				convs = append(convs, conv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}
