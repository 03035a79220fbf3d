package lobby

import (
	"context"
	"time"

	"github.com/DoyleJ11/offensive-cards/internal/engine"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"go.uber.org/zap"
)

type Msg interface{ isLobbyMsg() }

// FromClient applies a command. Reply, when set, receives the outcome as seen
// by the acting player.
type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isLobbyMsg() {}

type Result struct {
	Snapshot types.GameSnapshot
	Err      error
}

type Join struct {
	ClientID string
	UserID   string                 // whose hand this client may see; empty for spectators
	Outbox   chan types.PushMessage // where this client wants to receive frames
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

// Fail pushes an error frame to every client.
type Fail struct{ Message string }

func (Fail) isLobbyMsg() {}

// KickAll disconnects every client while keeping the game.
type KickAll struct{}

func (KickAll) isLobbyMsg() {}

type Shutdown struct{}

// idleFired is sent by the idle timer armed with generation gen.
type idleFired struct{ gen int }

func (idleFired) isLobbyMsg() {}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Version    int
	NumClients int
	Game       engine.Game
}

type client struct {
	userID string
	outbox chan types.PushMessage
}

type Lobby struct {
	inbox   chan Msg
	game    engine.Game
	version int
	clients map[string]client
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	idleAfter time.Duration
	onIdle    func()
	idleGen   int // bumped on every activity; older timers are stale
}

type Option func(*Lobby)

// WithIdleTimeout calls onIdle, from the lobby goroutine, once the lobby has
// gone d without clients or commands.
func WithIdleTimeout(d time.Duration, onIdle func()) Option {
	return func(l *Lobby) {
		l.idleAfter = d
		l.onIdle = onIdle
	}
}

func NewLobby(parent context.Context, initial engine.Game, log *zap.Logger, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}

	l := &Lobby{
		inbox:   make(chan Msg, 64),
		game:    initial,
		clients: make(map[string]client),
		log:     log.Named("lobby").With(zap.String("game_id", initial.Snapshot.ID)),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(l)
	}

	l.touch()
	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				c := client{userID: msg.UserID, outbox: msg.Outbox}
				if l.send(c, l.frame(c)) {
					l.clients[msg.ClientID] = c
				}
				l.touch()

			case Leave:
				delete(l.clients, msg.ClientID)
				l.touch()

			case FromClient:
				events, next, err := engine.Apply(l.game, msg.Cmd)
				if err != nil {
					l.log.Debug("command rejected",
						zap.String("cmd", string(msg.Cmd.Type)),
						zap.String("player_id", msg.Cmd.PlayerID),
						zap.Error(err),
					)
					reply(msg.Reply, Result{Err: err})
					break
				}
				l.game = next
				l.version++
				for _, e := range events {
					l.log.Debug("event", zap.String("type", string(e.Type)), zap.String("player_id", e.PlayerID))
				}
				reply(msg.Reply, Result{Snapshot: l.game.Snapshot.ForViewer(msg.Cmd.PlayerID)})
				l.broadcast()
				l.touch()

			case Fail:
				for id, c := range l.clients {
					if !l.send(c, types.PushMessage{Error: msg.Message}) {
						delete(l.clients, id)
					}
				}

			case KickAll:
				for id, c := range l.clients {
					close(c.outbox)
					delete(l.clients, id)
				}
				l.touch()

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Game:       l.game.Clone(),
				}

			case idleFired:
				if msg.gen == l.idleGen && len(l.clients) == 0 {
					l.log.Info("game idle")
					l.onIdle()
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	for id, c := range l.clients {
		close(c.outbox) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

// touch records activity and, while nobody is connected, arms a fresh idle
// timer.
func (l *Lobby) touch() {
	l.idleGen++
	if l.onIdle == nil || l.idleAfter <= 0 || len(l.clients) > 0 {
		return
	}
	gen := l.idleGen
	time.AfterFunc(l.idleAfter, func() {
		select {
		case l.inbox <- idleFired{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) frame(c client) types.PushMessage {
	snap := l.game.Snapshot.ForViewer(c.userID)
	return types.PushMessage{Snapshot: &snap}
}

func (l *Lobby) broadcast() {
	for id, c := range l.clients {
		if !l.send(c, l.frame(c)) {
			delete(l.clients, id)
		}
	}
}

// send drops a slow client: its outbox is closed and false is returned.
func (l *Lobby) send(c client, m types.PushMessage) bool {
	select {
	case c.outbox <- m:
		return true
	default:
		l.log.Debug("dropping slow client", zap.String("user_id", c.userID))
		close(c.outbox)
		return false
	}
}

func reply(ch chan Result, r Result) {
	if ch == nil {
		return
	}
	select {
	case ch <- r:
	default:
	}
}

// Expose the inbox so the http and ws layers can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Apply sends cmd to the lobby and waits for the outcome.
func (l *Lobby) Apply(ctx context.Context, cmd engine.Command) (types.GameSnapshot, error) {
	ch := make(chan Result, 1)
	select {
	case l.inbox <- FromClient{Cmd: cmd, Reply: ch}:
	case <-ctx.Done():
		return types.GameSnapshot{}, ctx.Err()
	}
	select {
	case r := <-ch:
		return r.Snapshot, r.Err
	case <-ctx.Done():
		return types.GameSnapshot{}, ctx.Err()
	}
}

// Snapshot returns the game as userID may see it.
func (l *Lobby) Snapshot(ctx context.Context, userID string) (types.GameSnapshot, error) {
	ch := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: ch}:
	case <-ctx.Done():
		return types.GameSnapshot{}, ctx.Err()
	}
	select {
	case v := <-ch:
		return v.Game.Snapshot.ForViewer(userID), nil
	case <-ctx.Done():
		return types.GameSnapshot{}, ctx.Err()
	}
}
