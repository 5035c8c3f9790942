package game

import (
	"sync"

	"tankbattle-backend/models"
)

// Queue is the FIFO matchmaking waiting list. A user appears at most once;
// pairing always takes the two longest-waiting users in arrival order.
type Queue struct {
	mu      sync.Mutex
	order   []string
	members map[string]*models.Player
}

func NewQueue() *Queue {
	return &Queue{
		order:   make([]string, 0),
		members: make(map[string]*models.Player),
	}
}

func (q *Queue) Enqueue(player *models.Player) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.members[player.ID]; exists {
		return ErrAlreadyQueued
	}

	q.members[player.ID] = player
	q.order = append(q.order, player.ID)
	return nil
}

// Dequeue removes a user voluntarily. Removing an absent user is a no-op.
func (q *Queue) Dequeue(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(userID)
}

func (q *Queue) remove(userID string) {
	if _, exists := q.members[userID]; !exists {
		return
	}
	delete(q.members, userID)
	for i, id := range q.order {
		if id == userID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// TryPair pops the two longest-waiting users in FIFO order. Returns ok=false
// when fewer than two users are waiting.
func (q *Queue) TryPair() (a, b *models.Player, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) < 2 {
		return nil, nil, false
	}

	a = q.members[q.order[0]]
	b = q.members[q.order[1]]
	q.remove(a.ID)
	q.remove(b.ID)
	return a, b, true
}

func (q *Queue) Contains(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, exists := q.members[userID]
	return exists
}

// Waiting returns the queued players in FIFO order.
func (q *Queue) Waiting() []*models.Player {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]*models.Player, 0, len(q.order))
	for _, id := range q.order {
		result = append(result, q.members[id])
	}
	return result
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
