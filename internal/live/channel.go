package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/DoyleJ11/offensive-cards/internal/session"
	"github.com/DoyleJ11/offensive-cards/internal/transport"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultInterval is the minimum spacing between the starts of two
// connection attempts.
const DefaultInterval = 5 * time.Second

var ErrClosed = errors.New("live channel closed")

// Source is what the channel needs from the transport client.
type Source interface {
	Session() *session.Session
	Resolve(path string) *url.URL
	AuthHeader(ctx context.Context) http.Header
}

// Handler receives every snapshot pushed by the server.
type Handler func(types.GameSnapshot)

type Options struct {
	Interval time.Duration
	Dial     Dialer
	Now      func() time.Time
	Logger   *zap.Logger
}

type phase int

const (
	idle phase = iota
	connecting
	open
	waiting
)

// attempt is one connection, from dial to failure.
type attempt struct {
	gen     uint64
	started time.Time
	failed  bool
	conn    Conn
}

// Channel keeps a push subscription to the session's game open, reconnecting
// whenever it drops.
type Channel struct {
	src  Source
	opts Options
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	phase      phase
	generation uint64
	current    *attempt
	timer      *time.Timer
	handlers   []Handler
	closed     bool
}

func NewChannel(parent context.Context, src Source, opts Options) *Channel {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Dial == nil {
		opts.Dial = DialWebsocket
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Channel{
		src:    src,
		opts:   opts,
		log:    opts.Logger.Named("live"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers h. Handlers run on the channel's reader goroutine in
// registration order and must not call Close.
func (c *Channel) Subscribe(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// EnsureConnected opens the channel unless it is already open or opening.
// A pending reconnect is superseded by an immediate attempt.
func (c *Channel) EnsureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	switch c.phase {
	case connecting, open:
		return nil
	case waiting:
		c.stopTimer()
	}
	if c.src.Session().GameID() == "" {
		return transport.ErrNoGame
	}
	c.connectLocked()
	return nil
}

// Connected reports whether a connection is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == open
}

// Generation counts connection attempts.
func (c *Channel) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Close stops reconnecting, closes the open connection and waits for the
// reader to exit.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopTimer()
	var conn Conn
	if c.current != nil {
		conn = c.current.conn
	}
	c.current = nil
	c.phase = idle
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = multierr.Append(err, conn.Close())
	}
	c.cancel()
	c.wg.Wait()
	return err
}

func (c *Channel) connectLocked() {
	c.generation++
	a := &attempt{gen: c.generation, started: c.opts.Now()}
	c.current = a
	c.phase = connecting
	c.wg.Add(1)
	go c.run(a)
}

func (c *Channel) run(a *attempt) {
	defer c.wg.Done()

	u, err := c.pushURL()
	if err != nil {
		c.fail(a, err)
		return
	}
	conn, err := c.opts.Dial(c.ctx, u, c.src.AuthHeader(c.ctx))
	if err != nil {
		c.fail(a, err)
		return
	}

	c.mu.Lock()
	if c.closed || c.current != a {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	a.conn = conn
	c.phase = open
	c.mu.Unlock()
	c.log.Info("connected", zap.Uint64("generation", a.gen), zap.String("url", u))

	for {
		data, err := conn.Read(c.ctx)
		if err != nil {
			c.fail(a, err)
			_ = conn.Close()
			return
		}
		c.deliver(a, data)
	}
}

func (c *Channel) deliver(a *attempt, data []byte) {
	var m types.PushMessage
	if err := json.Unmarshal(data, &m); err != nil {
		c.log.Warn("dropping unreadable frame", zap.Error(err))
		return
	}
	if m.Snapshot == nil {
		c.log.Warn("server error on live channel", zap.String("error", m.Error))
		return
	}

	c.mu.Lock()
	if c.closed || c.current != a {
		c.mu.Unlock()
		return
	}
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()

	rev := c.src.Session().Replace(*m.Snapshot)
	c.log.Debug("snapshot pushed",
		zap.String("state", string(m.Snapshot.State)),
		zap.Uint64("revision", rev),
	)
	for _, h := range handlers {
		h(m.Snapshot.Clone())
	}
}

// fail schedules the next attempt. Only the first failure reported for an
// attempt counts.
func (c *Channel) fail(a *attempt, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a.failed || c.closed || c.current != a {
		return
	}
	a.failed = true
	a.conn = nil
	c.phase = waiting

	delay := RetryDelay(a.started, c.opts.Now(), c.opts.Interval)
	c.log.Warn("live channel down",
		zap.Uint64("generation", a.gen),
		zap.Duration("retry_in", delay),
		zap.Error(cause),
	)
	c.timer = time.AfterFunc(delay, func() { c.retry(a) })
}

func (c *Channel) retry(a *attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.current != a || c.phase != waiting {
		return
	}
	c.timer = nil
	c.connectLocked()
}

func (c *Channel) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Channel) pushURL() (string, error) {
	gameID := c.src.Session().GameID()
	if gameID == "" {
		return "", transport.ErrNoGame
	}
	u := c.src.Resolve("games/" + gameID + "/ws")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("no push scheme for %q", u.Scheme)
	}
	return u.String(), nil
}

// RetryDelay is how long to wait after an attempt that began at started
// failed at failedAt, so that attempts start at least interval apart.
func RetryDelay(started, failedAt time.Time, interval time.Duration) time.Duration {
	elapsed := max(failedAt.Sub(started), 0)
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}
