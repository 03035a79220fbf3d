// Package authoritytest runs the development authority in-process for tests.
package authoritytest

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/DoyleJ11/offensive-cards/internal/cards"
	"github.com/DoyleJ11/offensive-cards/internal/engine"
	"github.com/DoyleJ11/offensive-cards/internal/httpapi"
	"github.com/DoyleJ11/offensive-cards/internal/hub"
	"github.com/DoyleJ11/offensive-cards/internal/lobby"
	"go.uber.org/zap"
)

type Authority struct {
	URL    string
	Hub    *hub.Hub
	server *httptest.Server
}

// Start serves a fresh authority until the test ends.
func Start(t testing.TB) *Authority {
	t.Helper()
	deck, err := cards.Builtin()
	if err != nil {
		t.Fatalf("builtin deck: %v", err)
	}
	// handlers outlive the test on hijacked connections, so nothing logs to t
	log := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx, log)
	srv := httptest.NewServer(httpapi.SetupRoutes(httpapi.NewAPI(h, deck, engine.DefaultRules(), log)))
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
		cancel()
	})
	return &Authority{URL: srv.URL + "/", Hub: h, server: srv}
}

// Game returns the authoritative game, every hand included.
func (a *Authority) Game(t testing.TB, gameID string) engine.Game {
	t.Helper()
	lb := a.lobby(t, gameID)
	reply := make(chan lobby.View, 1)
	lb.Inbox() <- lobby.GetState{Reply: reply}
	return (<-reply).Game
}

// Clients reports how many push clients the game has.
func (a *Authority) Clients(t testing.TB, gameID string) int {
	t.Helper()
	lb := a.lobby(t, gameID)
	reply := make(chan lobby.View, 1)
	lb.Inbox() <- lobby.GetState{Reply: reply}
	return (<-reply).NumClients
}

// Apply runs cmd against the game as if a player had sent it.
func (a *Authority) Apply(t testing.TB, gameID string, cmd engine.Command) {
	t.Helper()
	if _, err := a.lobby(t, gameID).Apply(context.Background(), cmd); err != nil {
		t.Fatalf("apply %s: %v", cmd.Type, err)
	}
}

// Kick disconnects every push client of the game.
func (a *Authority) Kick(t testing.TB, gameID string) {
	t.Helper()
	a.lobby(t, gameID).Inbox() <- lobby.KickAll{}
}

// Fail pushes an error frame to every client of the game.
func (a *Authority) Fail(t testing.TB, gameID, msg string) {
	t.Helper()
	a.lobby(t, gameID).Inbox() <- lobby.Fail{Message: msg}
}

func (a *Authority) lobby(t testing.TB, gameID string) *lobby.Lobby {
	t.Helper()
	lb, err := a.Hub.Get(context.Background(), gameID)
	if err != nil || lb == nil {
		t.Fatalf("game %s not found: %v", gameID, err)
	}
	return lb
}
