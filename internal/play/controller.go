package play

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DoyleJ11/offensive-cards/internal/cards"
	"github.com/DoyleJ11/offensive-cards/internal/identity"
	"github.com/DoyleJ11/offensive-cards/internal/live"
	"github.com/DoyleJ11/offensive-cards/internal/transport"
	"github.com/DoyleJ11/offensive-cards/internal/view"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNotLoaded = errors.New("game not loaded")

// API is the part of the transport client the controller drives.
type API interface {
	Identity(ctx context.Context) (*identity.Identity, bool)
	GetGame(ctx context.Context, gameID string) (types.GameSnapshot, error)
	GetCards(ctx context.Context) (types.CardCatalog, error)
	JoinGame(ctx context.Context, p types.NewPlayer) (types.GameSnapshot, error)
	StartGame(ctx context.Context) (types.GameSnapshot, error)
	Redeal(ctx context.Context) (types.GameSnapshot, error)
	SubmitCard(ctx context.Context, cardID string) (types.GameSnapshot, error)
	PickWinner(ctx context.Context, submissionID string) (types.GameSnapshot, error)
	NextRound(ctx context.Context) (types.GameSnapshot, error)
}

// Live is the push channel the controller keeps open.
type Live interface {
	EnsureConnected() error
	Subscribe(h live.Handler)
}

// Frame is everything a renderer needs for one screen.
type Frame struct {
	Snapshot types.GameSnapshot
	View     view.ViewState
	Notice   string // last failed action, until dismissed
	Fatal    error  // the snapshot broke an invariant; nothing more can be shown
}

// Loaded reports whether a game has been derived into this frame.
func (f Frame) Loaded() bool { return f.View.Screen != nil }

// Controller re-derives the view after every push and every action of one
// player, and hands the result to its listeners.
type Controller struct {
	api  API
	live Live
	log  *zap.Logger

	mu        sync.Mutex
	catalog   *cards.Catalog
	frame     Frame
	listeners []func(Frame)
}

func New(api API, ch Live, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{api: api, live: ch, log: log.Named("play"), catalog: cards.New(types.CardCatalog{})}
	ch.Subscribe(func(s types.GameSnapshot) {
		if err := c.refresh(context.Background(), s); err != nil {
			c.log.Error("pushed snapshot broke the view", zap.Error(err))
		}
	})
	return c
}

// Listen registers fn for every new frame.
func (c *Controller) Listen(fn func(Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *Controller) Catalog() *cards.Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog
}

// Load fetches the game and the card catalog together and derives the first
// frame.
func (c *Controller) Load(ctx context.Context, gameID string) (Frame, error) {
	var (
		game types.GameSnapshot
		deck types.CardCatalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		game, err = c.api.GetGame(gctx, gameID)
		return err
	})
	g.Go(func() error {
		var err error
		deck, err = c.api.GetCards(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Frame{}, fmt.Errorf("load game %s: %w", gameID, err)
	}

	c.mu.Lock()
	c.catalog = cards.New(deck)
	c.mu.Unlock()

	if err := c.refresh(ctx, game); err != nil {
		return c.Frame(), err
	}
	return c.Frame(), nil
}

func (c *Controller) Join(ctx context.Context, p types.NewPlayer) error {
	return c.act(ctx, "join", func(ctx context.Context) (types.GameSnapshot, error) {
		return c.api.JoinGame(ctx, p)
	})
}

func (c *Controller) Start(ctx context.Context) error {
	return c.act(ctx, "start", c.api.StartGame)
}

func (c *Controller) Redeal(ctx context.Context) error {
	return c.act(ctx, "redeal", c.api.Redeal)
}

func (c *Controller) NextRound(ctx context.Context) error {
	return c.act(ctx, "next round", c.api.NextRound)
}

// SelectCard picks the winning submission while judging, or submits a card
// from the hand while the round is being played. Anything else is ignored.
func (c *Controller) SelectCard(ctx context.Context, id string) error {
	f := c.Frame()
	if !f.Loaded() {
		return ErrNotLoaded
	}
	switch {
	case f.View.Screen == (view.JudgeSelect{}):
		return c.act(ctx, "pick winner", func(ctx context.Context) (types.GameSnapshot, error) {
			return c.api.PickWinner(ctx, id)
		})
	case f.Snapshot.State == types.StatePlaying:
		return c.act(ctx, "submit", func(ctx context.Context) (types.GameSnapshot, error) {
			return c.api.SubmitCard(ctx, id)
		})
	default:
		c.log.Debug("selection ignored", zap.String("screen", f.View.State()))
		return nil
	}
}

// Dismiss clears the notice.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	c.frame.Notice = ""
	f, listeners := c.frame, c.listenersLocked()
	c.mu.Unlock()
	notify(listeners, f)
}

// act runs a mutation. On failure the previous view stays and the error
// becomes the notice.
func (c *Controller) act(ctx context.Context, name string, fn func(context.Context) (types.GameSnapshot, error)) error {
	if !c.Frame().Loaded() {
		return ErrNotLoaded
	}
	snap, err := fn(ctx)
	if err != nil {
		c.log.Info("action failed", zap.String("action", name), zap.Error(err))
		c.mu.Lock()
		c.frame.Notice = "Error: " + transport.Message(err)
		f, listeners := c.frame, c.listenersLocked()
		c.mu.Unlock()
		notify(listeners, f)
		return err
	}
	return c.refresh(ctx, snap)
}

func (c *Controller) refresh(ctx context.Context, snap types.GameSnapshot) error {
	id, _ := c.api.Identity(ctx)
	vs, err := view.Derive(snap, id)

	c.mu.Lock()
	if c.frame.Fatal != nil {
		c.mu.Unlock()
		return c.frame.Fatal
	}
	if err != nil {
		c.frame.Fatal = err
	} else {
		c.frame.Snapshot = snap
		c.frame.View = vs
	}
	f, listeners := c.frame, c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, f)
	if err != nil {
		return err
	}

	if vs.Screen != (view.NewPlayerForm{}) {
		if err := c.live.EnsureConnected(); err != nil {
			c.log.Warn("live channel unavailable", zap.Error(err))
		}
	}
	return nil
}

func (c *Controller) listenersLocked() []func(Frame) {
	return append(([]func(Frame))(nil), c.listeners...)
}

func notify(listeners []func(Frame), f Frame) {
	for _, fn := range listeners {
		fn(f)
	}
}
