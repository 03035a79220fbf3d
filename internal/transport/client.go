package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DoyleJ11/offensive-cards/internal/identity"
	"github.com/DoyleJ11/offensive-cards/internal/session"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"go.uber.org/zap"
)

// DefaultBaseURL is the production remote API.
const DefaultBaseURL = "https://cf_cards.molmorg.workers.dev/"

// maxBody bounds how much of a response body is read.
const maxBody = 4 << 20

// Client talks to the remote API on behalf of one session. It authenticates
// with the stored identity whenever that identity belongs to the session's game.
type Client struct {
	base    *url.URL
	http    *http.Client
	ids     *identity.Store
	session *session.Session
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }
func WithLogger(l *zap.Logger) Option       { return func(c *Client) { c.log = l } }

func New(baseURL string, ids *identity.Store, s *session.Session, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	c := &Client{
		base:    base,
		http:    &http.Client{Timeout: 15 * time.Second},
		ids:     ids,
		session: s,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Named("transport")
	return c, nil
}

// Session returns the session this client updates.
func (c *Client) Session() *session.Session { return c.session }

// Base returns the API base URL.
func (c *Client) Base() *url.URL {
	u := *c.base
	return &u
}

// Identity returns the stored identity if it belongs to the session's game.
func (c *Client) Identity(ctx context.Context) (*identity.Identity, bool) {
	return c.ids.Resolve(ctx, c.session.GameID())
}

// AuthHeader returns the headers every authenticated request carries.
func (c *Client) AuthHeader(ctx context.Context) http.Header {
	h := http.Header{}
	if id, ok := c.Identity(ctx); ok {
		h.Set(types.UserIDHeader, id.UserID)
	}
	return h
}

// Resolve returns an absolute URL for path under the base.
func (c *Client) Resolve(path string) *url.URL {
	return c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
}

// CreateGame creates a game owned by p and stores the issued identity.
func (c *Client) CreateGame(ctx context.Context, p types.NewPlayer) (types.GameSnapshot, error) {
	snap, hdr, err := c.do(ctx, http.MethodPost, "games", types.PlayerRequest{Player: p})
	if err != nil {
		return types.GameSnapshot{}, err
	}
	if err := c.adoptIdentity(ctx, snap, hdr); err != nil {
		return types.GameSnapshot{}, err
	}
	c.commit(snap)
	return snap, nil
}

// GetGame fetches gameID and makes it the session's game.
func (c *Client) GetGame(ctx context.Context, gameID string) (types.GameSnapshot, error) {
	if gameID == "" {
		return types.GameSnapshot{}, ErrNoGame
	}
	snap, _, err := c.doAs(ctx, gameID, http.MethodGet, "games/"+gameID, nil)
	if err != nil {
		return types.GameSnapshot{}, err
	}
	c.commit(snap)
	return snap, nil
}

// GetCards fetches the static card catalog.
func (c *Client) GetCards(ctx context.Context) (types.CardCatalog, error) {
	req, err := c.newRequest(ctx, c.session.GameID(), http.MethodGet, "cards", nil)
	if err != nil {
		return types.CardCatalog{}, err
	}
	var cat types.CardCatalog
	if _, err := c.send(req, &cat); err != nil {
		return types.CardCatalog{}, err
	}
	return cat, nil
}

func (c *Client) StartGame(ctx context.Context) (types.GameSnapshot, error) {
	return c.mutate(ctx, "start", nil)
}

func (c *Client) Redeal(ctx context.Context) (types.GameSnapshot, error) {
	return c.mutate(ctx, "redeal", nil)
}

// JoinGame adds p to the session's game and stores the issued identity.
func (c *Client) JoinGame(ctx context.Context, p types.NewPlayer) (types.GameSnapshot, error) {
	gameID := c.session.GameID()
	if gameID == "" {
		return types.GameSnapshot{}, ErrNoGame
	}
	snap, hdr, err := c.do(ctx, http.MethodPost, gamePath(gameID, "join"), types.PlayerRequest{Player: p})
	if err != nil {
		return types.GameSnapshot{}, err
	}
	if err := c.adoptIdentity(ctx, snap, hdr); err != nil {
		return types.GameSnapshot{}, err
	}
	c.commit(snap)
	return snap, nil
}

func (c *Client) SubmitCard(ctx context.Context, cardID string) (types.GameSnapshot, error) {
	return c.mutate(ctx, "submit", types.SubmitRequest{SubmittedCard: cardID})
}

func (c *Client) PickWinner(ctx context.Context, submissionID string) (types.GameSnapshot, error) {
	return c.mutate(ctx, "pickWinner", types.PickWinnerRequest{WinningSubmissionID: submissionID})
}

func (c *Client) NextRound(ctx context.Context) (types.GameSnapshot, error) {
	return c.mutate(ctx, "nextRound", nil)
}

func (c *Client) mutate(ctx context.Context, action string, payload any) (types.GameSnapshot, error) {
	gameID := c.session.GameID()
	if gameID == "" {
		return types.GameSnapshot{}, ErrNoGame
	}
	snap, _, err := c.do(ctx, http.MethodPost, gamePath(gameID, action), payload)
	if err != nil {
		return types.GameSnapshot{}, err
	}
	c.commit(snap)
	return snap, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (types.GameSnapshot, http.Header, error) {
	return c.doAs(ctx, c.session.GameID(), method, path, payload)
}

// doAs authenticates against gameID, which may differ from the session's game
// while the session is being pointed at a new one.
func (c *Client) doAs(ctx context.Context, gameID, method, path string, payload any) (types.GameSnapshot, http.Header, error) {
	req, err := c.newRequest(ctx, gameID, method, path, payload)
	if err != nil {
		return types.GameSnapshot{}, nil, err
	}
	var snap types.GameSnapshot
	hdr, err := c.send(req, &snap)
	if err != nil {
		return types.GameSnapshot{}, nil, err
	}
	if snap.ID == "" {
		return types.GameSnapshot{}, nil, &APIError{Op: req.Method + " " + req.URL.Path, Status: http.StatusOK, Message: "response carried no game"}
	}
	return snap, hdr, nil
}

func (c *Client) newRequest(ctx context.Context, gameID, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Resolve(path).String(), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id, ok := c.ids.Resolve(ctx, gameID); ok {
		req.Header.Set(types.UserIDHeader, id.UserID)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) (http.Header, error) {
	op := req.Method + " " + req.URL.Path
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	c.log.Debug("response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(op, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Message: "unreadable response from server", Err: err}
	}
	return resp.Header, nil
}

func (c *Client) adoptIdentity(ctx context.Context, snap types.GameSnapshot, hdr http.Header) error {
	userID := hdr.Get(types.UserIDHeader)
	if userID == "" {
		return &APIError{Op: "identity", Status: http.StatusOK, Message: "server did not issue a user id"}
	}
	if err := c.ids.Save(ctx, snap.ID, userID); err != nil {
		return err
	}
	c.log.Info("joined game", zap.String("game_id", snap.ID))
	return nil
}

func (c *Client) commit(snap types.GameSnapshot) {
	rev := c.session.Replace(snap)
	c.log.Debug("snapshot replaced",
		zap.String("game_id", snap.ID),
		zap.String("state", string(snap.State)),
		zap.Uint64("revision", rev),
	)
}

func gamePath(gameID, action string) string {
	return "games/" + gameID + "/" + action
}
