package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hometwin/hometwin/pkg/log"
	"github.com/hometwin/hometwin/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message types sent to clients.
const (
	TypeSnapshot = "snapshot"
)

// Envelope wraps every message sent over the socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals a payload into a wire-ready envelope.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// SnapshotFunc returns the current twin snapshot, or an error if the twin
// has not been seeded yet.
type SnapshotFunc func() (types.TwinSnapshot, error)

// Handler upgrades connections and streams twin snapshots. Clients are
// read-only: anything they send is discarded.
type Handler struct {
	hub      *Hub
	snapshot SnapshotFunc
}

func NewHandler(hub *Hub, snapshot SnapshotFunc) *Handler {
	return &Handler{hub: hub, snapshot: snapshot}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()

	h.sendSnapshot(ctx, client)
	h.readPump(client)
}

// BroadcastSnapshot publishes a snapshot to every connected client.
func (h *Handler) BroadcastSnapshot(ctx context.Context, snap types.TwinSnapshot) {
	msg, err := NewEnvelope(TypeSnapshot, snap)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "marshaling snapshot", slog.Any("error", err))
		return
	}
	h.hub.Broadcast(ctx, msg)
}

func (h *Handler) sendSnapshot(ctx context.Context, c *Client) {
	snap, err := h.snapshot()
	if err != nil {
		// Twin not seeded yet. The client gets the first broadcast instead.
		return
	}
	msg, err := NewEnvelope(TypeSnapshot, snap)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "marshaling snapshot", slog.Any("error", err))
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
