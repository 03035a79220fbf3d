package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DoyleJ11/offensive-cards/internal/hub"
	"github.com/DoyleJ11/offensive-cards/internal/lobby"
	"github.com/DoyleJ11/offensive-cards/pkg/types"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// writeTimeout bounds a single frame write.
const writeTimeout = 3 * time.Second

// Handler streams the game's snapshots to one client. The client is
// authenticated by the user id header and only ever sees its own hand.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")
		lb, err := h.Get(r.Context(), gameID)
		if err != nil {
			http.Error(w, "game unavailable", http.StatusServiceUnavailable)
			return
		}
		if lb == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.PushMessage, 8)
		clientID := uuid.NewString()
		userID := r.Header.Get(types.UserIDHeader)

		lb.Inbox() <- lobby.Join{ClientID: clientID, UserID: userID, Outbox: out}
		defer func() { lb.Inbox() <- lobby.Leave{ClientID: clientID} }()
		log.Debug("client joined", zap.String("game_id", gameID), zap.String("client_id", clientID))

		// Push-only: anything the client sends is discarded, and ctx ends
		// when the client goes away.
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				return

			case m, ok := <-out:
				if !ok {
					// dropped by the lobby, or the game is gone
					conn.Close(websocket.StatusGoingAway, "disconnected by server")
					return
				}
				payload, err := json.Marshal(m)
				if err != nil {
					log.Error("encode frame", zap.Error(err))
					continue
				}
				if err := write(ctx, conn, payload); err != nil {
					log.Debug("write failed", zap.String("client_id", clientID), zap.Error(err))
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
