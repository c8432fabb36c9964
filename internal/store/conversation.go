package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cadence.app/server/core/db"
	"cadence.app/server/internal/model"
)

// PostgresConversationStore persists each conversation's state as a single
// JSONB blob keyed by conversation id. Mutations take a row lock so commands
// for the same conversation apply one at a time.
type PostgresConversationStore struct {
	db *db.DB
}

func NewPostgresConversationStore(database *db.DB) *PostgresConversationStore {
	return &PostgresConversationStore{db: database}
}

const schema = `
CREATE TABLE IF NOT EXISTS conversation_states (
    conversation_id TEXT PRIMARY KEY,
    state           JSONB NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the backing table when it does not exist yet.
func (s *PostgresConversationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Pool().Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure conversation_states schema: %w", err)
	}
	return nil
}

func (s *PostgresConversationStore) Get(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	var raw []byte
	err := s.db.Pool().QueryRow(ctx,
		`SELECT state FROM conversation_states WHERE conversation_id = $1`,
		conversationID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeState(raw)
}

// Mutate loads the state under a row lock, applies fn, and writes the result
// back in the same transaction. When no row exists yet fn runs against a
// fresh state. An error from fn rolls everything back.
func (s *PostgresConversationStore) Mutate(ctx context.Context, conversationID string, fn func(state *model.ConversationState) error) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx,
			`SELECT state FROM conversation_states WHERE conversation_id = $1 FOR UPDATE`,
			conversationID,
		).Scan(&raw)

		var state *model.ConversationState
		switch {
		case err == nil:
			if state, err = decodeState(raw); err != nil {
				return err
			}
		case errors.Is(err, pgx.ErrNoRows):
			state = model.NewConversationState()
		default:
			return err
		}

		if err := fn(state); err != nil {
			return err
		}

		encoded, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode conversation state: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_states (conversation_id, state, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (conversation_id)
			 DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
			conversationID, encoded,
		)
		return err
	})
}

func (s *PostgresConversationStore) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.Pool().Exec(ctx,
		`DELETE FROM conversation_states WHERE conversation_id = $1`,
		conversationID,
	)
	return err
}

func decodeState(raw []byte) (*model.ConversationState, error) {
	var state model.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	state.Normalize()
	return &state, nil
}
