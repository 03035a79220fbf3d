package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	mrand "math/rand/v2"
	"net/http"

	"github.com/DoyleJ11/offensive-cards/internal/engine"
	"github.com/DoyleJ11/offensive-cards/internal/hub"
	"github.com/DoyleJ11/offensive-cards/internal/lobby"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRequestBody bounds every JSON request body.
const maxRequestBody = 64 << 10

// API serves the game routes on top of a hub.
type API struct {
	hub   *hub.Hub
	deck  types.CardCatalog
	rules engine.Rules
	log   *zap.Logger
}

func NewAPI(h *hub.Hub, deck types.CardCatalog, rules engine.Rules, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{hub: h, deck: deck, rules: rules, log: log.Named("httpapi")}
}

// GenerateGameID returns 64 hex characters.
func GenerateGameID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// newUserID issues player ids; tests may stub it.
var newUserID = func() string { return uuid.NewString() }

func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req types.PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	userID := newUserID()

	for {
		id, err := GenerateGameID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate game id")
			return
		}
		g, err := engine.NewGame(id, userID, req.Player, a.deck, a.rules, mrand.Uint64())
		if err != nil {
			a.writeEngineError(w, err)
			return
		}
		created, err := a.hub.Create(r.Context(), g)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "failed to create game")
			return
		}
		if !created.New {
			a.log.Warn("collision on game id, regenerating")
			continue
		}

		w.Header().Set(types.UserIDHeader, userID)
		writeJSON(w, http.StatusCreated, g.Snapshot.ForViewer(userID))
		return
	}
}

func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	lb, ok := a.lobby(w, r)
	if !ok {
		return
	}
	snap, err := lb.Snapshot(r.Context(), r.Header.Get(types.UserIDHeader))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "game unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) GetCards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deck)
}

func (a *API) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req types.PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	userID := newUserID()
	snap, ok := a.apply(w, r, engine.Command{Type: engine.CmdJoin, PlayerID: userID, Player: req.Player})
	if !ok {
		return
	}
	w.Header().Set(types.UserIDHeader, userID)
	writeJSON(w, http.StatusOK, snap)
}

// Action serves the body-less commands: start, redeal and nextRound.
func (a *API) Action(t engine.CommandType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := a.apply(w, r, engine.Command{Type: t, PlayerID: r.Header.Get(types.UserIDHeader)})
		if ok {
			writeJSON(w, http.StatusOK, snap)
		}
	}
}

func (a *API) Submit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if !decode(w, r, &req) {
		return
	}
	snap, ok := a.apply(w, r, engine.Command{
		Type:     engine.CmdSubmit,
		PlayerID: r.Header.Get(types.UserIDHeader),
		CardID:   req.SubmittedCard,
	})
	if ok {
		writeJSON(w, http.StatusOK, snap)
	}
}

func (a *API) PickWinner(w http.ResponseWriter, r *http.Request) {
	var req types.PickWinnerRequest
	if !decode(w, r, &req) {
		return
	}
	snap, ok := a.apply(w, r, engine.Command{
		Type:         engine.CmdPickWinner,
		PlayerID:     r.Header.Get(types.UserIDHeader),
		SubmissionID: req.WinningSubmissionID,
	})
	if ok {
		writeJSON(w, http.StatusOK, snap)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *API) lobby(w http.ResponseWriter, r *http.Request) (*lobby.Lobby, bool) {
	lb, err := a.hub.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "game unavailable")
		return nil, false
	}
	if lb == nil {
		writeError(w, http.StatusNotFound, "game not found")
		return nil, false
	}
	return lb, true
}

func (a *API) apply(w http.ResponseWriter, r *http.Request, cmd engine.Command) (types.GameSnapshot, bool) {
	lb, ok := a.lobby(w, r)
	if !ok {
		return types.GameSnapshot{}, false
	}
	snap, err := lb.Apply(r.Context(), cmd)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "game unavailable")
			return types.GameSnapshot{}, false
		}
		a.writeEngineError(w, err)
		return types.GameSnapshot{}, false
	}
	return snap, true
}

func (a *API) writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidPlayer),
		errors.Is(err, engine.ErrCardNotInHand),
		errors.Is(err, engine.ErrUnknownSubmission),
		errors.Is(err, engine.ErrUnsupportedCommand):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownPlayer),
		errors.Is(err, engine.ErrNotOwner),
		errors.Is(err, engine.ErrWrongTurn):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrWrongPhase),
		errors.Is(err, engine.ErrNotEnoughPlayers),
		errors.Is(err, engine.ErrAlreadySubmitted),
		errors.Is(err, engine.ErrNoRedeals):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorBody{Message: msg})
}
