package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kenanunal/lander/internal/commander"
	"github.com/kenanunal/lander/internal/config"
	"github.com/kenanunal/lander/internal/storage/sqlite"
	"github.com/kenanunal/lander/internal/websocket"
	"github.com/kenanunal/lander/pkg/logger"
)

// Router wraps the chi router and its handlers
type Router struct {
	handler *Handler
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(cmdr *commander.Commander, flightLog *sqlite.FlightStorage, telemetry *sqlite.TelemetryStorage, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler: NewHandler(cmdr, flightLog, telemetry, cfg, log, wsServer),
		logger:  log.Named("api-router"),
	}
}

// Routes returns the HTTP handler with all routes mounted
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", rt.handler.GetStatus)
		r.Get("/transitions", rt.handler.GetTransitions)
		r.Get("/tracks", rt.handler.GetTracks)
		r.Get("/setpoints", rt.handler.GetSetpoints)
		r.Post("/relinquish", rt.handler.Relinquish)
	})

	r.Get("/ws", rt.handler.HandleWebSocket)

	return r
}

// requestLogger logs each request with method, path, and duration
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)))
	})
}
