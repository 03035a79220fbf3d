package live

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/offensive-cards/internal/authoritytest"
	"github.com/DoyleJ11/offensive-cards/internal/engine"
	"github.com/DoyleJ11/offensive-cards/internal/identity"
	"github.com/DoyleJ11/offensive-cards/internal/session"
	"github.com/DoyleJ11/offensive-cards/internal/transport"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func waitFor(t *testing.T, within time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", within)
}

// dialLog records when each dial started.
type dialLog struct {
	mu    sync.Mutex
	times []time.Time
}

func (d *dialLog) add() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.times = append(d.times, time.Now())
}

func (d *dialLog) snapshot() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.times...)
}

func (d *dialLog) count() int { return len(d.snapshot()) }

func (d *dialLog) wrap(next Dialer) Dialer {
	return func(ctx context.Context, url string, header http.Header) (Conn, error) {
		d.add()
		return next(ctx, url, header)
	}
}

func failingDial(context.Context, string, http.Header) (Conn, error) {
	return nil, errors.New("connection refused")
}

type blockingConn struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingConn() *blockingConn { return &blockingConn{closed: make(chan struct{})} }

func (b *blockingConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.closed:
		return nil, errors.New("closed")
	}
}

func (b *blockingConn) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func blockingDial(context.Context, string, http.Header) (Conn, error) {
	return newBlockingConn(), nil
}

func offlineSource(t *testing.T, gameID string) Source {
	t.Helper()
	c, err := transport.New("http://127.0.0.1:1/", identity.NewStore(identity.NewMemoryBackend(), nil), session.New(gameID))
	require.NoError(t, err)
	return c
}

func newTestChannel(t *testing.T, src Source, opts Options) *Channel {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	ch := NewChannel(context.Background(), src, opts)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestRetryDelay(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		elapsed time.Duration
		want    time.Duration
	}{
		{name: "died instantly", elapsed: 0, want: 5 * time.Second},
		{name: "died after 4.9s", elapsed: 4900 * time.Millisecond, want: 100 * time.Millisecond},
		{name: "died at exactly 5s", elapsed: 5 * time.Second, want: 0},
		{name: "long-lived", elapsed: 6 * time.Second, want: 0},
		{name: "clock went backwards", elapsed: -time.Second, want: 5 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RetryDelay(start, start.Add(tc.elapsed), DefaultInterval))
		})
	}
}

func TestEnsureConnectedNeedsAGame(t *testing.T) {
	ch := newTestChannel(t, offlineSource(t, ""), Options{Dial: blockingDial})
	assert.ErrorIs(t, ch.EnsureConnected(), transport.ErrNoGame)
	assert.Zero(t, ch.Generation())
}

func TestEnsureConnectedIsIdempotent(t *testing.T) {
	dials := &dialLog{}
	ch := newTestChannel(t, offlineSource(t, "g1"), Options{Dial: dials.wrap(blockingDial)})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ch.EnsureConnected())
		}()
	}
	wg.Wait()
	waitFor(t, time.Second, ch.Connected)
	require.NoError(t, ch.EnsureConnected())

	assert.Equal(t, uint64(1), ch.Generation())
	assert.Equal(t, 1, dials.count())
}

func TestDialFailuresAreSpacedByTheInterval(t *testing.T) {
	const interval = 80 * time.Millisecond
	dials := &dialLog{}
	ch := newTestChannel(t, offlineSource(t, "g1"), Options{Interval: interval, Dial: dials.wrap(failingDial)})

	require.NoError(t, ch.EnsureConnected())
	waitFor(t, 2*time.Second, func() bool { return dials.count() >= 4 })

	times := dials.snapshot()
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, gap, interval-10*time.Millisecond, "attempt %d came %v after the previous one", i, gap)
	}
	assert.False(t, ch.Connected())
	assert.GreaterOrEqual(t, ch.Generation(), uint64(4))
}

func TestFailureIsSingleFlight(t *testing.T) {
	const interval = 30 * time.Millisecond
	dials := &dialLog{}
	ch := newTestChannel(t, offlineSource(t, "g1"), Options{Interval: interval, Dial: dials.wrap(blockingDial)})

	// an attempt that is already up, reported down twice at once
	a := &attempt{gen: 1, started: time.Now(), conn: newBlockingConn()}
	ch.mu.Lock()
	ch.generation = 1
	ch.current = a
	ch.phase = open
	ch.mu.Unlock()

	var wg sync.WaitGroup
	for _, cause := range []error{errors.New("closed"), errors.New("reset")} {
		wg.Add(1)
		go func(err error) {
			defer wg.Done()
			ch.fail(a, err)
		}(cause)
	}
	wg.Wait()

	waitFor(t, time.Second, ch.Connected)
	time.Sleep(4 * interval)
	assert.Equal(t, 1, dials.count(), "exactly one reconnect sequence")
	assert.Equal(t, uint64(2), ch.Generation())
}

func TestEnsureConnectedSupersedesPendingRetry(t *testing.T) {
	var mu sync.Mutex
	fail := true
	dials := &dialLog{}
	dial := func(ctx context.Context, url string, h http.Header) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return failingDial(ctx, url, h)
		}
		return blockingDial(ctx, url, h)
	}
	ch := newTestChannel(t, offlineSource(t, "g1"), Options{Interval: time.Hour, Dial: dials.wrap(dial)})

	require.NoError(t, ch.EnsureConnected())
	waitFor(t, time.Second, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return ch.phase == waiting
	})

	mu.Lock()
	fail = false
	mu.Unlock()
	require.NoError(t, ch.EnsureConnected())
	waitFor(t, time.Second, ch.Connected)
	assert.Equal(t, 2, dials.count())
}

func TestCloseStopsReconnecting(t *testing.T) {
	const interval = 30 * time.Millisecond
	dials := &dialLog{}
	ch := newTestChannel(t, offlineSource(t, "g1"), Options{Interval: interval, Dial: dials.wrap(failingDial)})

	require.NoError(t, ch.EnsureConnected())
	waitFor(t, time.Second, func() bool { return dials.count() >= 2 })
	require.NoError(t, ch.Close())
	n := dials.count()

	time.Sleep(4 * interval)
	assert.Equal(t, n, dials.count())
	assert.ErrorIs(t, ch.EnsureConnected(), ErrClosed)
	assert.NoError(t, ch.Close(), "second close is a no-op")
}

// liveGame creates a game on a fresh authority and returns the owner's client.
func liveGame(t *testing.T) (*authoritytest.Authority, *transport.Client, types.GameSnapshot) {
	t.Helper()
	a := authoritytest.Start(t)
	ids := identity.NewStore(identity.NewMemoryBackend(), nil)
	c, err := transport.New(a.URL, ids, session.New(""))
	require.NoError(t, err)
	game, err := c.CreateGame(context.Background(), types.NewPlayer{Name: "Ann", Short: "AN"})
	require.NoError(t, err)
	return a, c, game
}

func TestPushesReachSubscribersInOrder(t *testing.T) {
	a, c, game := liveGame(t)
	ch := newTestChannel(t, c, Options{})

	var mu sync.Mutex
	var calls []string
	var seen []types.GameSnapshot
	ch.Subscribe(func(s types.GameSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "first")
		seen = append(seen, s)
	})
	ch.Subscribe(func(types.GameSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "second")
	})

	require.NoError(t, ch.EnsureConnected())
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 2
	})

	a.Apply(t, game.ID, engine.Command{Type: engine.CmdJoin, PlayerID: "p2", Player: types.NewPlayer{Name: "Ben", Short: "BE"}})
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 4
	})

	mu.Lock()
	assert.Equal(t, []string{"first", "second", "first", "second"}, calls)
	assert.Len(t, seen[1].Players, 2)
	mu.Unlock()

	cached, ok := c.Session().Snapshot()
	require.True(t, ok)
	assert.Len(t, cached.Players, 2, "pushes replace the cached snapshot")
	assert.Len(t, cached.Players[0].Cards, 0)
}

func TestPushedHandsAreTheViewersOwn(t *testing.T) {
	a, c, game := liveGame(t)
	ch := newTestChannel(t, c, Options{})
	owner := game.Players[0].ID

	got := make(chan types.GameSnapshot, 8)
	ch.Subscribe(func(s types.GameSnapshot) { got <- s })
	require.NoError(t, ch.EnsureConnected())
	<-got

	for _, id := range []string{"p2", "p3"} {
		a.Apply(t, game.ID, engine.Command{Type: engine.CmdJoin, PlayerID: id, Player: types.NewPlayer{Name: id, Short: id}})
	}
	a.Apply(t, game.ID, engine.Command{Type: engine.CmdStart, PlayerID: owner})

	var started types.GameSnapshot
	waitFor(t, time.Second, func() bool {
		select {
		case s := <-got:
			started = s
		default:
		}
		return started.State == types.StatePlaying
	})
	assert.Len(t, started.Players[0].Cards, 7)
	assert.Empty(t, started.Players[1].Cards)
}

func TestErrorFramesAreDropped(t *testing.T) {
	a, c, game := liveGame(t)
	ch := newTestChannel(t, c, Options{})

	got := make(chan types.GameSnapshot, 8)
	ch.Subscribe(func(s types.GameSnapshot) { got <- s })
	require.NoError(t, ch.EnsureConnected())
	<-got
	rev := c.Session().Revision()

	a.Fail(t, game.ID, "storage unavailable")
	select {
	case s := <-got:
		t.Fatalf("error frame reached a subscriber: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, rev, c.Session().Revision())
	assert.True(t, ch.Connected(), "an error frame does not drop the connection")
}

func TestLongLivedConnectionReconnectsImmediately(t *testing.T) {
	const interval = 200 * time.Millisecond
	a, c, game := liveGame(t)
	dials := &dialLog{}
	ch := newTestChannel(t, c, Options{Interval: interval, Dial: dials.wrap(DialWebsocket)})

	require.NoError(t, ch.EnsureConnected())
	waitFor(t, time.Second, func() bool { return a.Clients(t, game.ID) == 1 })
	time.Sleep(interval + 50*time.Millisecond)

	kicked := time.Now()
	a.Kick(t, game.ID)
	waitFor(t, time.Second, func() bool { return dials.count() == 2 })
	assert.Less(t, dials.snapshot()[1].Sub(kicked), interval/2)

	waitFor(t, time.Second, func() bool { return a.Clients(t, game.ID) == 1 })
	assert.Equal(t, uint64(2), ch.Generation())
}

func TestQuickDropWaitsOutTheInterval(t *testing.T) {
	const interval = 400 * time.Millisecond
	a, c, game := liveGame(t)
	dials := &dialLog{}
	ch := newTestChannel(t, c, Options{Interval: interval, Dial: dials.wrap(DialWebsocket)})

	require.NoError(t, ch.EnsureConnected())
	waitFor(t, time.Second, func() bool { return a.Clients(t, game.ID) == 1 })
	a.Kick(t, game.ID)

	waitFor(t, 2*time.Second, func() bool { return dials.count() == 2 })
	times := dials.snapshot()
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), interval-20*time.Millisecond)
}
