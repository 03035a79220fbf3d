package live

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// dialTimeout bounds the websocket handshake.
const dialTimeout = 10 * time.Second

// readLimit bounds a single pushed frame.
const readLimit = 4 << 20

// Conn is one open push connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a push connection to url, sending header with the handshake.
type Dialer func(ctx context.Context, url string, header http.Header) (Conn, error)

type wsConn struct{ c *websocket.Conn }

func (w wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

// DialWebsocket is the default Dialer.
func DialWebsocket(ctx context.Context, url string, header http.Header) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(readLimit)
	return wsConn{c: c}, nil
}
