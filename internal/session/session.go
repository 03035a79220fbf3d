package session

import (
	"sync"

	"github.com/DoyleJ11/offensive-cards/pkg/types"
)

// Session owns the cached snapshot for one active game. Every update replaces
// the previous snapshot wholesale; whichever update lands last wins.
type Session struct {
	mu       sync.RWMutex
	gameID   string
	snapshot *types.GameSnapshot
	revision uint64
}

// New starts a session for gameID. An empty gameID is allowed before a game
// has been created.
func New(gameID string) *Session {
	return &Session{gameID: gameID}
}

// GameID is the id of the game this session tracks.
func (s *Session) GameID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameID
}

// Snapshot returns a copy of the cached snapshot.
func (s *Session) Snapshot() (types.GameSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return types.GameSnapshot{}, false
	}
	return s.snapshot.Clone(), true
}

// Revision counts local replacements. It is not a server version.
func (s *Session) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Replace stores snap as the current snapshot and adopts its game id.
func (s *Session) Replace(snap types.GameSnapshot) uint64 {
	c := snap.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &c
	if c.ID != "" {
		s.gameID = c.ID
	}
	s.revision++
	return s.revision
}
