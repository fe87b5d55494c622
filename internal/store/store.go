// Package store implements the durable store on BadgerDB. It persists
// users, conversations and messages, and provides the transactional
// create/update and query methods the services are built on.
package store

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/imranmaj/language-chat/pkg/logger"
)

// Key layout. Message keys embed a zero-padded sequence number so a prefix
// iteration yields messages in creation order.
const (
	prefixUserByID    = "user:id:"
	prefixUserByName  = "user:name:"
	prefixUserByEmail = "user:email:"
	prefixConv        = "conv:"
	prefixUserConv    = "userconv:"
	prefixMsg         = "msg:"
)

// Store wraps a Badger database.
type Store struct {
	db     *badger.DB
	logger *logger.Logger
}

// Open opens (or creates) the database at dir.
func Open(dir string, log *logger.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, logger: log}, nil
}

// OpenInMemory opens an ephemeral database. Used in tests and when
// STORE_IN_MEMORY is set.
func OpenInMemory(log *logger.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, logger: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func get[T any](txn *badger.Txn, key string) (*T, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var v T
	if err := item.Value(func(val []byte) error {
		return unmarshal(val, &v)
	}); err != nil {
		return nil, err
	}
	return &v, nil
}

func set(txn *badger.Txn, key string, v any) error {
	data, err := marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
