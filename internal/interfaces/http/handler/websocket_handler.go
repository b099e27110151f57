package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	wsInfra "github.com/GanizaniSitara/controls-ux/internal/infrastructure/notification/websocket"
	"github.com/GanizaniSitara/controls-ux/internal/interfaces/http/middleware"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// WebSocketHandler upgrades clients that subscribe to refresh events.
type WebSocketHandler struct {
	hub            *wsInfra.Hub
	logger         *logger.Logger
	allowedOrigins map[string]struct{}
	authConfig     middleware.AuthConfig
	upgrader       websocket.Upgrader
}

func NewWebSocketHandler(
	hub *wsInfra.Hub,
	allowedOrigins []string,
	authConfig middleware.AuthConfig,
	logger *logger.Logger,
) *WebSocketHandler {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			originMap[trimmed] = struct{}{}
		}
	}

	h := &WebSocketHandler{
		hub:            hub,
		logger:         logger,
		allowedOrigins: originMap,
		authConfig:     authConfig,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts same-host clients without an Origin header (CLI tools) and
// browser clients from the allow list.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	if _, ok := h.allowedOrigins[parsed.Scheme+"://"+parsed.Host]; ok {
		return true
	}
	_, wildcard := h.allowedOrigins["*"]
	return wildcard
}

// HandleConnection registers a new subscriber with the hub. The optional
// events query parameter (comma separated) limits the refresh event types sent.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ValidateRequestAuth(r, h.authConfig); err != nil {
		h.logger.Warn("WebSocket unauthorized", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var requested []string
	for _, v := range r.URL.Query()["events"] {
		requested = append(requested, strings.Split(v, ",")...)
	}
	events, err := wsInfra.ParseEventTypes(requested)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", err)
		return
	}

	client := wsInfra.NewClient(h.hub, conn, h.logger, events...)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
