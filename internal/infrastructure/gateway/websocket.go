package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
	"watchparty/internal/core/services"
	"watchparty/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Gateway bridges store subscriptions to browser clients. Each connection
// watches one room; playback, presence and chat updates fan out as typed
// JSON events, and inbound chat messages flow back through the chat service.
type Gateway struct {
	auth         *services.AuthService
	rooms        ports.RoomRepository
	participants ports.ParticipantRepository
	chat         *services.ChatService

	connections map[domain.UserID]*clientConn
	mu          sync.RWMutex

	pingInterval   time.Duration
	pongTimeout    time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	livenessWindow time.Duration

	logger *zap.SugaredLogger
}

type clientConn struct {
	conn *websocket.Conn
	room domain.RoomID
}

// ClientMessage is the inbound frame envelope.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is the outbound frame envelope.
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type chatPayload struct {
	Message string `json:"message"`
}

func NewGateway(
	auth *services.AuthService,
	rooms ports.RoomRepository,
	participants ports.ParticipantRepository,
	chat *services.ChatService,
	logger *zap.SugaredLogger,
) *Gateway {
	return &Gateway{
		auth:           auth,
		rooms:          rooms,
		participants:   participants,
		chat:           chat,
		connections:    make(map[domain.UserID]*clientConn),
		pingInterval:   30 * time.Second, // Default ping interval
		pongTimeout:    60 * time.Second, // Default pong timeout
		readTimeout:    60 * time.Second, // Default read timeout
		writeTimeout:   10 * time.Second, // Default write timeout
		livenessWindow: services.DefaultLivenessWindow,
		logger:         logger,
	}
}

// SetPingInterval sets ping interval for WebSocket connections
func (g *Gateway) SetPingInterval(interval time.Duration) {
	g.pingInterval = interval
}

// SetPongTimeout sets pong timeout for WebSocket connections
func (g *Gateway) SetPongTimeout(timeout time.Duration) {
	g.pongTimeout = timeout
}

// SetLivenessWindow sets the window used to filter stale voice participants.
func (g *Gateway) SetLivenessWindow(window time.Duration) {
	g.livenessWindow = window
}

// Stats reports connection counts for the metrics endpoint.
func (g *Gateway) Stats() domain.PartyStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rooms := make(map[domain.RoomID]struct{}, len(g.connections))
	for _, c := range g.connections {
		rooms[c.room] = struct{}{}
	}
	return domain.PartyStats{
		GatewayConnections: len(g.connections),
		WatchedRooms:       len(rooms),
	}
}

func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := g.auth.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	roomID := domain.RoomID(r.URL.Query().Get("room"))
	if roomID == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	identity := claims.Identity()
	userID := domain.UserID(identity.UID)

	g.mu.Lock()
	if existing, isReconnect := g.connections[userID]; isReconnect && existing != nil {
		existing.conn.Close()
		g.logger.Infow("closing old connection for reconnecting user", "user_id", userID)
	}
	g.connections[userID] = &clientConn{conn: conn, room: roomID}
	g.mu.Unlock()

	g.logger.Infow("client connected", "user_id", userID, "room_id", roomID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(g.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(g.readTimeout))
		return nil
	})

	roomCh, err := g.rooms.Watch(ctx, roomID)
	if err != nil {
		g.logger.Errorw("room watch failed", "room_id", roomID, "error", err)
		g.cleanup(userID, conn)
		return
	}
	partCh, err := g.participants.Watch(ctx, roomID)
	if err != nil {
		g.logger.Errorw("participant watch failed", "room_id", roomID, "error", err)
		g.cleanup(userID, conn)
		return
	}
	chatCh, err := g.chat.Watch(ctx, roomID)
	if err != nil {
		g.logger.Errorw("chat watch failed", "room_id", roomID, "error", err)
		g.cleanup(userID, conn)
		return
	}

	pingTicker := time.NewTicker(g.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan ClientMessage, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(g.readTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case room, ok := <-roomCh:
			if !ok {
				// Watch channel closes when the room is deleted.
				g.send(conn, ServerMessage{Type: "room_ended"})
				g.cleanup(userID, conn)
				return
			}
			g.send(conn, ServerMessage{Type: "room", Payload: room})

		case parts, ok := <-partCh:
			if !ok {
				g.cleanup(userID, conn)
				return
			}
			active := services.ActiveSet(parts, time.Now(), g.livenessWindow)
			g.send(conn, ServerMessage{Type: "presence", Payload: active})

		case msg, ok := <-chatCh:
			if !ok {
				g.cleanup(userID, conn)
				return
			}
			g.send(conn, ServerMessage{Type: "chat", Payload: msg})

		case msg := <-messageChan:
			if err := g.handleMessage(ctx, identity, roomID, msg); err != nil {
				g.logger.Infow("error handling client message", "user_id", userID, "error", err)
				g.send(conn, ServerMessage{Type: "error", Payload: map[string]string{"error": err.Error()}})
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(g.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				g.logger.Infow("error sending ping", "user_id", userID, "error", err)
				g.cleanup(userID, conn)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.logger.Infow("error reading client message", "user_id", userID, "error", err)
			}
			g.cleanup(userID, conn)
			return
		}
	}
}

func (g *Gateway) handleMessage(ctx context.Context, identity domain.Identity, room domain.RoomID, msg ClientMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}

	ctx, span := tracing.TraceGatewayMessage(ctx, msg.Type, string(identity.UID))
	defer span.End()

	switch msg.Type {
	case "chat":
		var payload chatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("invalid chat payload: %w", err)
		}
		_, err := g.chat.Send(ctx, room, identity, payload.Message)
		return err
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (g *Gateway) send(conn *websocket.Conn, msg ServerMessage) {
	conn.SetWriteDeadline(time.Now().Add(g.writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		g.logger.Debugw("websocket write failed", "error", err)
	}
}

func (g *Gateway) cleanup(user domain.UserID, conn *websocket.Conn) {
	g.mu.Lock()
	if current, ok := g.connections[user]; ok && current.conn == conn {
		delete(g.connections, user)
	}
	g.mu.Unlock()
	g.logger.Infow("client disconnected", "user_id", user)
}
