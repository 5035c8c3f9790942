package game

import (
	"encoding/json"
	"errors"
	"log"

	"tankbattle-backend/constants"
	"tankbattle-backend/models"
)

// clientMessage is the envelope for every client -> server frame. Fields
// beyond Type are populated per message kind.
type clientMessage struct {
	Type     string              `json:"type"`
	UserID   string              `json:"userId"`
	Username string              `json:"username"`
	Controls models.ControlInput `json:"controls"`
}

// HandleMessage decodes one inbound frame and dispatches on its type. Every
// per-message error is handled here: bad frames are logged and dropped, the
// connection stays open, and nothing propagates into the tick loop.
func (m *Manager) HandleMessage(client *models.Player, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("Malformed frame from connection %s: %v", client.ConnID, err)
		return
	}

	switch msg.Type {
	case constants.MSG_JOIN_TANK_BATTLE:
		m.handleJoin(client, msg)
	case constants.MSG_JOIN_QUEUE:
		m.handleJoinQueue(client, msg)
	case constants.MSG_LEAVE_QUEUE:
		if m.bindIdentity(client, msg) {
			m.LeaveQueue(client.ID)
		}
	case constants.MSG_PLAYER_INPUT:
		m.handlePlayerInput(client, msg)
	default:
		log.Printf("Unknown message type %q from player %s", msg.Type, client.ID)
	}
}

// handleJoin registers the client's presence with the connection registry.
func (m *Manager) handleJoin(client *models.Player, msg clientMessage) {
	if !m.bindIdentity(client, msg) {
		return
	}
	m.Registry.Register(client)
	m.Registry.SendTo(client, constants.MSG_CONNECTED, map[string]any{
		"player": client.Info(),
	})
}

func (m *Manager) handleJoinQueue(client *models.Player, msg clientMessage) {
	if !m.bindIdentity(client, msg) {
		return
	}
	m.Registry.Register(client)

	if err := m.JoinQueue(client); err != nil {
		code := "JOIN_QUEUE_FAILED"
		switch {
		case errors.Is(err, ErrAlreadyQueued):
			code = "ALREADY_QUEUED"
		case errors.Is(err, ErrAlreadyInSession):
			code = "ALREADY_IN_SESSION"
		}
		m.Registry.SendTo(client, constants.MSG_ERROR, map[string]any{
			"code":    code,
			"message": err.Error(),
		})
	}
}

// handlePlayerInput routes the control snapshot to the player's session.
// Input for a user with no active session is dropped and logged.
func (m *Manager) handlePlayerInput(client *models.Player, msg clientMessage) {
	if client.ID == "" || (msg.UserID != "" && msg.UserID != client.ID) {
		log.Printf("Dropping input frame with mismatched identity (conn %s)", client.ConnID)
		return
	}

	session, err := m.SessionFor(client.ID)
	if err != nil {
		log.Printf("Dropping input from %s: %v", client.ID, err)
		return
	}
	session.ApplyInput(client.ID, msg.Controls)
}

// bindIdentity attaches the claimed identity to the connection on first use.
// A connection authenticated at upgrade time already carries its identity; a
// frame claiming someone else's userId is rejected.
func (m *Manager) bindIdentity(client *models.Player, msg clientMessage) bool {
	if client.ID != "" {
		if msg.UserID != "" && msg.UserID != client.ID {
			m.Registry.SendTo(client, constants.MSG_ERROR, map[string]any{
				"code":    "IDENTITY_MISMATCH",
				"message": "userId does not match this connection's identity",
			})
			return false
		}
		return true
	}

	if msg.UserID == "" {
		m.Registry.SendTo(client, constants.MSG_ERROR, map[string]any{
			"code":    "USER_ID_REQUIRED",
			"message": "userId is required",
		})
		return false
	}

	client.ID = msg.UserID
	client.Username = msg.Username
	if client.Username == "" {
		client.Username = "Player_" + shortID(client.ID)
	}
	return true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
