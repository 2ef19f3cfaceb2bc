package handler

import (
	"net/http"
	"time"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	noticeQueue = 32
)

// EventHandler streams committed content changes of one workspace to
// websocket clients.
type EventHandler struct {
	bus      *event.Bus
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(bus *event.Bus, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With().Str("component", "event-stream").Logger(),
	}
}

// Stream upgrades the request and forwards every domain.ChangeNotice of the
// addressed workspace until the client goes away. A client that falls
// behind loses notices rather than stalling the publisher.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, err := workspace(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	notices := make(chan domain.ChangeNotice, noticeQueue)
	unsubscribe := h.bus.Subscribe(event.ContentChanged, func(e event.Event) {
		n, ok := e.Data.(domain.ChangeNotice)
		if !ok || n.Workspace != ws {
			return
		}
		select {
		case notices <- n:
		default:
			h.logger.Warn().Str("workspace", ws).Msg("subscriber queue full, dropping notice")
		}
	})
	defer unsubscribe()

	// Subscribed before the handshake completes, so a client that has
	// connected sees every later commit.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.logger.Debug().Str("workspace", ws).Str("remote", r.RemoteAddr).Msg("subscriber connected")

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case n := <-notices:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				h.logger.Debug().Err(err).Msg("write to subscriber failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			h.logger.Debug().Str("workspace", ws).Msg("subscriber disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readLoop discards client messages; it exists to process control frames
// and notice when the peer closes.
func (h *EventHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
