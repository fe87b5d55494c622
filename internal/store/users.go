package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/imranmaj/language-chat/internal/model"
)

// userRecord is the persisted form of a user. The API model redacts the
// password hash from JSON output; the stored record must keep it.
type userRecord struct {
	model.User
	PasswordHash string `json:"password_hash"`
}

func newUserRecord(u *model.User) *userRecord {
	return &userRecord{User: *u, PasswordHash: u.PasswordHash}
}

func (r *userRecord) user() *model.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

// CreateUser persists a new user. Username and email uniqueness are enforced
// inside the transaction.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*model.User, error) {
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if taken, err := exists(txn, prefixUserByName+username); err != nil {
			return err
		} else if taken {
			return ErrUsernameTaken
		}
		if taken, err := exists(txn, prefixUserByEmail+email); err != nil {
			return err
		} else if taken {
			return ErrEmailTaken
		}

		if err := set(txn, prefixUserByID+user.ID, newUserRecord(user)); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixUserByName+username), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(prefixUserByEmail+email), []byte(user.ID))
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// FindUserByID looks up a user by id.
func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var user *model.User
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := get[userRecord](txn, prefixUserByID+id)
		if err != nil {
			return err
		}
		user = rec.user()
		return nil
	})
	return user, err
}

// FindUserByUsername looks up a user by username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUserByIndex(prefixUserByName + username)
}

// FindUserByEmail looks up a user by email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUserByIndex(prefixUserByEmail + email)
}

func (s *Store) findUserByIndex(key string) (*model.User, error) {
	var user *model.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}

		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}

		rec, err := get[userRecord](txn, prefixUserByID+id)
		if err != nil {
			return err
		}
		user = rec.user()
		return nil
	})
	return user, err
}

// UpdateUser rewrites a user record. If the email changed, the email index
// is moved in the same transaction and uniqueness re-checked.
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	return s.db.Update(func(txn *badger.Txn) error {
		current, err := get[userRecord](txn, prefixUserByID+user.ID)
		if err != nil {
			return err
		}

		if current.Email != user.Email {
			if taken, err := exists(txn, prefixUserByEmail+user.Email); err != nil {
				return err
			} else if taken {
				return ErrEmailTaken
			}
			if err := txn.Delete([]byte(prefixUserByEmail + current.Email)); err != nil {
				return err
			}
			if err := txn.Set([]byte(prefixUserByEmail+user.Email), []byte(user.ID)); err != nil {
				return err
			}
		}

		return set(txn, prefixUserByID+user.ID, newUserRecord(user))
	})
}

// FindWaitingUsers returns every user with an outstanding wait-state, in
// FIFO order by the time they started waiting. Used to rebuild the waiting
// pool on startup.
func (s *Store) FindWaitingUsers(ctx context.Context) ([]model.User, error) {
	var waiting []model.User

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixUserByID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec userRecord
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode user %s: %w", strings.TrimPrefix(string(it.Item().Key()), prefixUserByID), err)
			}
			if rec.IsWaiting() {
				waiting = append(waiting, *rec.user())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].WaitingSince.Before(waiting[j].WaitingSince)
	})
	return waiting, nil
}
