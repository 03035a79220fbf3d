package hub

import (
	"context"
	"time"

	"github.com/DoyleJ11/offensive-cards/internal/engine"
	"github.com/DoyleJ11/offensive-cards/internal/lobby"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

// CreateGame starts a lobby for Game unless one already holds its id, in
// which case the existing lobby is returned and Created is false.
type CreateGame struct {
	Game  engine.Game
	Reply chan Created
}

type Created struct {
	Lobby *lobby.Lobby
	New   bool
}

type GetGame struct {
	ID    string
	Reply chan *lobby.Lobby
}

// RemoveGame shuts the game's lobby down and forgets it.
type RemoveGame struct {
	ID string
}

type ShutdownHub struct{}

func (CreateGame) isHubMsg()  {}
func (GetGame) isHubMsg()     {}
func (RemoveGame) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox     chan HubMsg
	lobbies   map[string]*lobby.Lobby
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	idleAfter time.Duration
}

type Option func(*Hub)

// WithGameIdleTimeout removes games that have gone d without push clients or
// commands. Zero keeps games until shutdown.
func WithGameIdleTimeout(d time.Duration) Option {
	return func(h *Hub) { h.idleAfter = d }
}

func NewHub(parent context.Context, log *zap.Logger, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(h)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			// lobbies share h.ctx and shut themselves down
			clear(h.lobbies)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateGame:
				id := msg.Game.Snapshot.ID
				if lb := h.lobbies[id]; lb != nil {
					msg.Reply <- Created{Lobby: lb}
					break
				}
				var opts []lobby.Option
				if h.idleAfter > 0 {
					opts = append(opts, lobby.WithIdleTimeout(h.idleAfter, func() { go h.remove(id) }))
				}
				lb := lobby.NewLobby(h.ctx, msg.Game, h.log, opts...)
				h.lobbies[id] = lb
				h.log.Info("game created", zap.String("game_id", id), zap.Int("games", len(h.lobbies)))
				msg.Reply <- Created{Lobby: lb, New: true}

			case GetGame:
				msg.Reply <- h.lobbies[msg.ID] // May be nil

			case RemoveGame:
				if lb := h.lobbies[msg.ID]; lb != nil {
					lb.Inbox() <- lobby.Shutdown{}
					delete(h.lobbies, msg.ID)
					h.log.Info("game removed", zap.String("game_id", msg.ID), zap.Int("games", len(h.lobbies)))
				}

			case ShutdownHub:
				for _, lb := range h.lobbies {
					lb.Inbox() <- lobby.Shutdown{}
				}
				clear(h.lobbies)
				h.cancel()
			}
		}
	}
}

func (h *Hub) remove(id string) {
	select {
	case h.inbox <- RemoveGame{ID: id}:
	case <-h.ctx.Done():
	}
}

// Create registers g and returns its lobby. New is false when the id was taken.
func (h *Hub) Create(ctx context.Context, g engine.Game) (Created, error) {
	reply := make(chan Created, 1)
	select {
	case h.inbox <- CreateGame{Game: g, Reply: reply}:
	case <-ctx.Done():
		return Created{}, ctx.Err()
	}
	select {
	case c := <-reply:
		return c, nil
	case <-ctx.Done():
		return Created{}, ctx.Err()
	}
}

// Get returns the lobby for id, or nil.
func (h *Hub) Get(ctx context.Context, id string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.inbox <- GetGame{ID: id, Reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case lb := <-reply:
		return lb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
