// Package service provides the matchmaking, conversation lifecycle and
// message relay logic.
package service

import (
	"errors"
	"fmt"

	"github.com/imranmaj/language-chat/internal/model"
)

var (
	// ErrNotAuthenticated means the operation requires an identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoActiveSession means the operation requires an active conversation.
	ErrNoActiveSession = errors.New("no active conversation")
	// ErrNotFound means the referenced conversation does not exist.
	ErrNotFound = errors.New("conversation not found")
	// ErrForbidden means the user is not a participant of the conversation.
	ErrForbidden = errors.New("not a participant of this conversation")
	// ErrInvalidLanguage means the requested language is not supported.
	ErrInvalidLanguage = errors.New("unsupported language")
	// ErrEmptyMessage means the message content is empty.
	ErrEmptyMessage = errors.New("message content cannot be empty")
	// ErrMessageTooLong means the message content exceeds the bound.
	ErrMessageTooLong = fmt.Errorf("message content exceeds %d characters", model.MaxMessageLength)
)
