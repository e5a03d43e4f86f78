// Package signaling is the WebSocket connection transport (spec.md §6.1):
// it owns the per-connection read/write loops and the auth handshake,
// and hands decoded events to internal/roomcore.Server for everything
// else. It never looks at a Room, Peer, Transport, Producer or Consumer
// directly.
package signaling

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-conf/roomcore/internal/identity"
	"github.com/aura-conf/roomcore/internal/roomcore"
)

const (
	// PingInterval and PongWait drive the heartbeat that detects a
	// silently dropped connection (spec.md §5 "a dropped signaling
	// connection cancels all pending operations for that peer").
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	readLimit    = 65536
	sendQueueLen = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the wire envelope for every event, matching spec.md §6.1
// ("Each event is a 2-tuple {name, payload}").
type WSMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is one peer's signaling connection. Its id is the peerId
// referenced throughout internal/roomcore (spec.md §3 Peer, §6.1).
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan WSMessage
	log  *zap.Logger
}

// Send implements roomcore.Sender. It never blocks the caller on a slow
// client: a full queue drops the notification and logs it, matching
// spec.md §4.5 ("Fan-out send failures to a specific recipient are
// logged but do not affect the originator's result").
func (c *Client) Send(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("marshal outbound payload", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Payload: raw}:
	default:
		c.log.Warn("dropping outbound event, send queue full", zap.String("client_id", c.ID), zap.String("event", event))
	}
}

// Handler upgrades HTTP requests to WebSocket connections, verifies the
// bearer token, registers the resulting Peer, and runs the per-connection
// read/write loop pair (spec.md §2 item 7 Bootstrap, §4.3).
func Handler(server *roomcore.Server, verifier identity.Verifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		peerIdentity, err := verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			conn: conn,
			send: make(chan WSMessage, sendQueueLen),
			log:  log,
		}
		server.Connect(client.ID, roomcore.PeerIdentity{
			UserID: peerIdentity.UserID.String(),
			Role:   peerIdentity.Role,
		}, client)

		go client.writePump()
		client.readPump(server)
	}
}

// readPump is the single-writer inbox for this connection: every event
// from this client is processed strictly in arrival order before the
// next is read (spec.md §5 I5, §9 Design Notes "per-peer serialization
// is then a single-writer inbox per connection").
func (c *Client) readPump(server *roomcore.Server) {
	defer func() {
		server.Disconnect(c.ID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
		server.Dispatch(c.ID, msg.Event, msg.Payload)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
