package api

import (
	"bufio"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lattice/internal/logstream"
)

// LogHandler exposes a logstream.Hub over HTTP.
type LogHandler struct {
	hub *logstream.Hub
}

// NewLogHandler creates a new LogHandler.
func NewLogHandler(hub *logstream.Hub) *LogHandler {
	return &LogHandler{hub: hub}
}

// CreateChannel handles POST /api/logs and returns a fresh channel name.
func (h *LogHandler) CreateChannel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, ChannelResponse{Channel: logstream.NewChannelName()})
}

// Stream handles GET /api/logs/{channel} by upgrading to a WebSocket.
func (h *LogHandler) Stream(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, chi.URLParam(r, "channel"))
}

// Publish handles POST /api/logs/{channel}. Every non-empty line of the
// plain-text body is sent as one message.
func (h *LogHandler) Publish(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	delivered := 0
	sc := bufio.NewScanner(r.Body)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		delivered += h.hub.Publish(channel, []byte(line))
	}
	if err := sc.Err(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	writeJSON(w, http.StatusOK, ChannelResponse{Channel: channel, Delivered: delivered})
}
