package registry

import (
	"encoding/json"
	"log"
	"sync"

	"tankbattle-backend/models"
)

// DisconnectFunc is invoked after a client's registry entry is removed, so
// the session layer can run the forfeit path for that user.
type DisconnectFunc func(userID string)

// Registry maps userId -> live client. Registration order is preserved for
// snapshots. Register replaces any prior entry for the same userId, which is
// how a reconnect-without-cleanup is handled.
type Registry struct {
	mu           sync.RWMutex
	clients      map[string]*models.Player
	order        []string
	onDisconnect DisconnectFunc
}

func New() *Registry {
	return &Registry{
		clients: make(map[string]*models.Player),
		order:   make([]string, 0),
	}
}

func (r *Registry) OnDisconnect(fn DisconnectFunc) {
	r.onDisconnect = fn
}

// Register binds a client to its userId. A prior connection for the same
// userId is superseded: its send channel is closed, which shuts down its
// write pump, and the new client takes its place in the same queue position.
func (r *Registry) Register(client *models.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.clients[client.ID]; exists {
		if old.ConnID == client.ConnID {
			return
		}
		close(old.Send)
		r.clients[client.ID] = client
		log.Printf("Replaced connection for player %s (%s)", client.ID, client.Username)
		return
	}

	r.clients[client.ID] = client
	r.order = append(r.order, client.ID)
}

// Unregister removes the entry for userID, but only if connID still matches
// the registered connection. A close event from a connection that was already
// replaced by a reconnect must not tear down the new one. Returns whether an
// entry was actually removed; the disconnect callback fires only in that case.
func (r *Registry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	client, exists := r.clients[userID]
	if !exists || client.ConnID != connID {
		r.mu.Unlock()
		return false
	}

	delete(r.clients, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	close(client.Send)
	r.mu.Unlock()

	if r.onDisconnect != nil {
		r.onDisconnect(userID)
	}
	return true
}

func (r *Registry) Get(userID string) (*models.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[userID]
	return client, exists
}

// Send delivers a typed message to one user. Loss is acceptable: if the user
// has no open connection or the send buffer is full, the message is dropped
// and logged — the next tick's snapshot supersedes it anyway.
func (r *Registry) Send(userID string, msgType string, data map[string]any) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[userID]
	if !exists {
		log.Printf("Dropping %s message: no connection for player %s", msgType, userID)
		return
	}
	r.deliver(client, msgType, data)
}

// SendTo delivers directly to a client handle that may not be registered yet
// (error replies before identity binding).
func (r *Registry) SendTo(client *models.Player, msgType string, data map[string]any) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if registered, exists := r.clients[client.ID]; exists && registered.ConnID != client.ConnID {
		// Superseded connection; its channel may already be closed.
		return
	}
	r.deliver(client, msgType, data)
}

// deliver assumes the registry lock is held, which excludes a concurrent
// Register/Unregister from closing the channel mid-send.
func (r *Registry) deliver(client *models.Player, msgType string, data map[string]any) {
	message := map[string]any{
		"type": msgType,
	}
	for k, v := range data {
		message[k] = v
	}

	jsonData, _ := json.Marshal(message)

	select {
	case client.Send <- jsonData:
	default:
		log.Printf("Dropping %s message for player %s (%s): send buffer full", msgType, client.ID, client.Username)
	}
}

// Snapshot returns registered clients in registration order.
func (r *Registry) Snapshot() []*models.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Player, 0, len(r.order))
	for _, id := range r.order {
		if client, exists := r.clients[id]; exists {
			result = append(result, client)
		}
	}
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
