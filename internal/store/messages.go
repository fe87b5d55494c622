package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/imranmaj/language-chat/internal/model"
)

func messageKey(convID string, seq int) string {
	return fmt.Sprintf("%s%s:%010d", prefixMsg, convID, seq)
}

// AppendMessage persists a new message at the tail of a conversation. The
// sequence number assignment and the conversation's message count update
// happen in the same transaction, so concurrent appends cannot collide.
func (s *Store) AppendMessage(ctx context.Context, convID, authorID, content string) (*model.Message, error) {
	var msg *model.Message

	err := s.db.Update(func(txn *badger.Txn) error {
		conv, err := get[model.Conversation](txn, prefixConv+convID)
		if err != nil {
			return err
		}

		m := &model.Message{
			ID:             uuid.NewString(),
			ConversationID: convID,
			AuthorID:       authorID,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
			Seq:            conv.MessageCount,
		}
		if err := set(txn, messageKey(convID, m.Seq), m); err != nil {
			return err
		}

		conv.MessageCount++
		if err := set(txn, prefixConv+convID, conv); err != nil {
			return err
		}

		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// FindMessagesByConversation returns the full message sequence of a
// conversation in creation order.
func (s *Store) FindMessagesByConversation(ctx context.Context, convID string) ([]model.Message, error) {
	var msgs []model.Message

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixMsg + convID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg model.Message
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MessageAt returns the message with the given sequence number, or
// ErrNotFound past either end of the conversation.
func (s *Store) MessageAt(ctx context.Context, convID string, seq int) (*model.Message, error) {
	if seq < 0 {
		return nil, ErrNotFound
	}

	var msg *model.Message
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := get[model.Message](txn, messageKey(convID, seq))
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	return msg, err
}
