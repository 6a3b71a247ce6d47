package handlers

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/hub"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/middleware"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/services"
)

type WebSocketHandler struct {
	hub          *hub.Hub
	applications services.ApplicationService
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// NewWebSocketHandler allows browser origins from allowedOrigins; "*" allows any.
func NewWebSocketHandler(h *hub.Hub, as services.ApplicationService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:          h,
		applications: as,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] {
					return true
				}
				if allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// ServeApplications streams application changes for one event to its host.
// Clients connect to /ws/events/{eventId}/applications?token=...
func (h *WebSocketHandler) ServeApplications(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	if err := h.applications.AuthorizeHost(r.Context(), eventID, currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", "event_id", eventID, "error", err)
		return
	}

	client := hub.NewClient(h.hub, conn, hub.RoomForEvent(eventID))
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("host subscribed to application feed", "event_id", eventID, "user_id", currentUserID, "client_id", client.ID)
}
