package store

import (
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken means the username is already registered.
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrEmailTaken means the email is already registered.
	ErrEmailTaken = errors.New("email is already taken")
)

func marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
