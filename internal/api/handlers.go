// Package api exposes the landing program over HTTP: current status,
// the flight log, a manual relinquish control, and the live WebSocket feed.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kenanunal/lander/internal/commander"
	"github.com/kenanunal/lander/internal/config"
	"github.com/kenanunal/lander/internal/storage/sqlite"
	"github.com/kenanunal/lander/internal/websocket"
	"github.com/kenanunal/lander/pkg/logger"
)

const defaultRecordLimit = 100

// Handler contains the API handlers
type Handler struct {
	commander *commander.Commander
	flightLog *sqlite.FlightStorage
	telemetry *sqlite.TelemetryStorage
	config    *config.Config
	logger    *logger.Logger
	wsServer  *websocket.Server
	startedAt time.Time
}

// NewHandler creates a new API handler
func NewHandler(cmdr *commander.Commander, flightLog *sqlite.FlightStorage, telemetry *sqlite.TelemetryStorage, config *config.Config, log *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		commander: cmdr,
		flightLog: flightLog,
		telemetry: telemetry,
		config:    config,
		logger:    log.Named("api-handler"),
		wsServer:  wsServer,
		startedAt: time.Now().UTC(),
	}
}

// GetStatus returns the current flight state and FCU mode.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"state":      string(h.commander.State()),
		"mode":       h.commander.VehicleMode(),
		"uptime_sec": int(time.Since(h.startedAt).Seconds()),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// GetTransitions returns recent flight state transitions, newest first.
func (h *Handler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultRecordLimit)
	records, err := h.flightLog.GetTransitions(limit)
	if err != nil {
		h.logger.Error("Failed to fetch transitions", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch transitions"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"count":       len(records),
		"transitions": records,
	})
}

// GetTracks returns recent target track observations, newest first.
func (h *Handler) GetTracks(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultRecordLimit)
	records, err := h.telemetry.GetObservations(limit)
	if err != nil {
		h.logger.Error("Failed to fetch track observations", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch track observations"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"count":  len(records),
		"tracks": records,
	})
}

// GetSetpoints returns recent commanded setpoints, newest first.
func (h *Handler) GetSetpoints(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultRecordLimit)
	records, err := h.telemetry.GetSetpoints(limit)
	if err != nil {
		h.logger.Error("Failed to fetch setpoints", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch setpoints"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"count":     len(records),
		"setpoints": records,
	})
}

// Relinquish stops the landing program and hands the vehicle back to the
// FCU hold mode. It waits, bounded by the request context, for the
// program to settle back into its pending state.
func (h *Handler) Relinquish(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Relinquish requested", logger.String("remote_addr", r.RemoteAddr))

	if err := h.commander.RelinquishControl(r.Context()); err != nil {
		h.logger.Error("Relinquish failed", logger.Error(err))
		WriteJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"state":     string(h.commander.State()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleWebSocket upgrades the connection and attaches it to the hub.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
