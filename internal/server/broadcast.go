package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/caas/audit-substrate/internal/compliance"
)

// Broadcaster fans AAP's processed events out to connected websocket
// clients, the live-tail role the teacher's dashboard package plays for
// proxy events, generalized from one fixed topic to arbitrary subscribers.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection and registers it as a subscriber until
// it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	// Subscribers are write-only; any inbound message (including the
	// close frame) ends the loop.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends event to every connected client, dropping (and
// disconnecting) any client whose write fails. No write deadline is set,
// so a slow client is not dropped and delays the writes that follow it.
func (b *Broadcaster) Publish(event compliance.ProcessedAuditEvent) {
	payload, err := json.Marshal(processedAuditEventView(event))
	if err != nil {
		b.log.Error("marshal processed event for broadcast", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(b.clients, conn)
		}
	}
}

func processedAuditEventView(p compliance.ProcessedAuditEvent) map[string]interface{} {
	return map[string]interface{}{
		"event_id":  p.Event.EventID,
		"tenant_id": p.Event.TenantID,
		"bucket":    p.Event.Bucket,
		"fidelity":  p.Fidelity,
		"record_id": p.Record.RecordID,
		"record_hash": p.Record.RecordHash,
	}
}
