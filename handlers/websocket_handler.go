package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tankbattle-backend/auth"
	"tankbattle-backend/constants"
	"tankbattle-backend/game"
	"tankbattle-backend/models"

	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WebSocketHandler struct {
	gameManager *game.Manager
}

func NewWebSocketHandler(gameManager *game.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		gameManager: gameManager,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &models.Player{
		ConnID:   uuid.New().String(),
		Send:     make(chan []byte, 256),
		JoinedAt: time.Now(),
	}

	// A token from the auth layer binds the identity up front, so later
	// frames cannot claim somebody else's userId. Without a token the
	// identity arrives with the first join message.
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := auth.ValidateToken(token)
		if err != nil {
			log.Printf("Rejecting connection with invalid token: %v", err)
			conn.Close()
			return
		}
		client.ID = claims.UserID
		client.Username = claims.Username
		h.gameManager.Registry.Register(client)
		h.gameManager.Registry.SendTo(client, constants.MSG_CONNECTED, map[string]any{
			"player": client.Info(),
		})
	}

	go h.writePump(client, conn)
	h.readPump(client, conn)
}

func (h *WebSocketHandler) readPump(client *models.Player, conn *websocket.Conn) {
	defer func() {
		h.gameManager.Registry.Unregister(client.ID, client.ConnID)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", client.Username, err)
			}
			break
		}

		h.gameManager.HandleMessage(client, message)
	}
}

func (h *WebSocketHandler) writePump(client *models.Player, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages
			n := len(client.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-client.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
