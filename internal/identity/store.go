package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Key is the single storage key holding the active identity.
const Key = "cards-userId"

var ErrEmptyIdentity = errors.New("game id and user id are required")

// Identity pairs a game id with the user id the server issued for it.
type Identity struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

// Store keeps exactly one Identity: the one for the game joined most recently.
type Store struct {
	backend Backend
	log     *zap.Logger
}

func NewStore(b Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: b, log: log.Named("identity")}
}

// Save replaces whatever identity was stored before.
func (s *Store) Save(ctx context.Context, gameID, userID string) error {
	if gameID == "" || userID == "" {
		return ErrEmptyIdentity
	}
	raw, err := json.Marshal(Identity{GameID: gameID, UserID: userID})
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, Key, string(raw)); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	s.log.Debug("identity saved", zap.String("game_id", gameID))
	return nil
}

// Load returns the stored identity. Missing, unreadable and malformed records
// all read as absent.
func (s *Store) Load(ctx context.Context) (*Identity, bool) {
	raw, ok, err := s.backend.Get(ctx, Key)
	if err != nil {
		s.log.Warn("identity backend read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		s.log.Debug("ignoring malformed identity record", zap.Error(err))
		return nil, false
	}
	if id.GameID == "" || id.UserID == "" {
		return nil, false
	}
	return &id, true
}

// Resolve returns the stored identity only if it belongs to currentGameID, so
// a client reused across games never authenticates as the wrong player.
func (s *Store) Resolve(ctx context.Context, currentGameID string) (*Identity, bool) {
	if currentGameID == "" {
		return nil, false
	}
	id, ok := s.Load(ctx)
	if !ok || id.GameID != currentGameID {
		return nil, false
	}
	return id, true
}
