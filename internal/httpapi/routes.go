package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/offensive-cards/internal/engine"
	"github.com/DoyleJ11/offensive-cards/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRoutes(a *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.log))

	r.Get("/healthz", Healthz)
	r.Get("/cards", a.GetCards)

	r.Post("/games", a.CreateGame)
	r.Route("/games/{gameID}", func(r chi.Router) {
		r.Get("/", a.GetGame)
		r.Get("/ws", ws.Handler(a.hub, a.log))
		r.Post("/join", a.JoinGame)
		r.Post("/start", a.Action(engine.CmdStart))
		r.Post("/redeal", a.Action(engine.CmdRedeal))
		r.Post("/submit", a.Submit)
		r.Post("/pickWinner", a.PickWinner)
		r.Post("/nextRound", a.Action(engine.CmdNextRound))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
