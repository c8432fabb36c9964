package store

import (
	"context"
	"errors"

	"cadence.app/server/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ConversationStore defines the contract for per-conversation state access.
// Mutate is the only write path: it loads the state (creating a fresh one
// when none exists), applies fn, and persists the result in one transaction
// serialized per conversation, so a command is never applied to a stale blob.
type ConversationStore interface {
	Get(ctx context.Context, conversationID string) (*model.ConversationState, error)
	Mutate(ctx context.Context, conversationID string, fn func(state *model.ConversationState) error) error
	Delete(ctx context.Context, conversationID string) error
}
