// Package signaling exposes the server event stream to external consumers
// (the WebSocket presence layer, observability tooling) as JSON frames.
package signaling

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Armagedda/whisper-fleet-link/internal/event"
	"github.com/Armagedda/whisper-fleet-link/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// Hub bridges the event bus to WebSocket subscribers. Each connection gets
// its own bus subscription, so a slow consumer only loses its own events.
type Hub struct {
	bus *event.Bus
}

// NewHub creates a hub on the given bus.
func NewHub(bus *event.Bus) *Hub {
	return &Hub{bus: bus}
}

// Handler returns the HTTP handler that upgrades to WebSocket and streams
// events until the client disconnects.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.serve)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.bus.Subscribe()
	defer cancel()

	util.LogInfo("event stream subscriber connected from %s", r.RemoteAddr)

	// Drain client frames so pings/closes are processed; inbound content is
	// ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			util.LogDebug("event stream subscriber %s dropped: %v", r.RemoteAddr, err)
			return
		}
	}
}
