package game

import (
	"log"
	"sync"
	"time"

	"tankbattle-backend/constants"
	"tankbattle-backend/models"
	"tankbattle-backend/registry"
)

// Manager creates and destroys game sessions, routes inbound input to the
// owning session, and broadcasts per-tick snapshots through the registry.
type Manager struct {
	Registry *registry.Registry
	Queue    *Queue

	Mutex         sync.RWMutex
	Sessions      map[string]*Session // sessionId -> session
	PlayerSession map[string]string   // userId -> sessionId
}

func NewManager(reg *registry.Registry) *Manager {
	m := &Manager{
		Registry:      reg,
		Queue:         NewQueue(),
		Sessions:      make(map[string]*Session),
		PlayerSession: make(map[string]string),
	}
	reg.OnDisconnect(m.HandleDisconnect)
	return m
}

// JoinQueue enqueues a registered player and pairs when two are waiting.
func (m *Manager) JoinQueue(player *models.Player) error {
	m.Mutex.RLock()
	_, inSession := m.PlayerSession[player.ID]
	m.Mutex.RUnlock()
	if inSession {
		return ErrAlreadyInSession
	}

	if err := m.Queue.Enqueue(player); err != nil {
		return err
	}
	log.Printf("Player %s (%s) joined queue, waiting: %d", player.ID, player.Username, m.Queue.Len())

	m.broadcastQueueStatus()
	m.tryPair()
	return nil
}

// LeaveQueue removes a player voluntarily. Leaving when not queued is a no-op.
func (m *Manager) LeaveQueue(userID string) {
	if !m.Queue.Contains(userID) {
		return
	}
	m.Queue.Dequeue(userID)
	m.broadcastQueueStatus()
}

func (m *Manager) tryPair() {
	playerA, playerB, ok := m.Queue.TryPair()
	if !ok {
		return
	}
	m.CreateSession(playerA, playerB)
}

// broadcastQueueStatus tells everyone still waiting who is in the queue.
func (m *Manager) broadcastQueueStatus() {
	waiting := m.Queue.Waiting()
	infos := make([]models.PlayerInfo, 0, len(waiting))
	for _, p := range waiting {
		infos = append(infos, p.Info())
	}
	for _, p := range waiting {
		m.Registry.Send(p.ID, constants.MSG_PLAYER_JOINED, map[string]any{
			"players": infos,
		})
	}
}

// CreateSession allocates a session for two paired players, starts its tick
// loop, and notifies both clients.
func (m *Manager) CreateSession(playerA, playerB *models.Player) *Session {
	session := NewSession(playerA, playerB)

	m.Mutex.Lock()
	m.Sessions[session.ID] = session
	m.PlayerSession[playerA.ID] = session.ID
	m.PlayerSession[playerB.ID] = session.ID
	m.Mutex.Unlock()

	log.Printf("Session %s created for %s and %s", session.ID, playerA.Username, playerB.Username)

	snapshot := session.Snapshot()
	started := map[string]any{
		"tanks":    snapshot.Tanks,
		"gameRoom": session.ID,
	}
	m.Registry.Send(playerA.ID, constants.MSG_GAME_STARTED, started)
	m.Registry.Send(playerB.ID, constants.MSG_GAME_STARTED, started)

	session.Ticker = time.NewTicker(constants.TICK_RATE)
	go m.runSession(session)
	return session
}

// SessionFor looks up the session a user is playing in.
func (m *Manager) SessionFor(userID string) (*Session, error) {
	m.Mutex.RLock()
	defer m.Mutex.RUnlock()

	sessionID, exists := m.PlayerSession[userID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	session, exists := m.Sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// runSession is the per-session tick loop. Exactly one runs per session; it
// exits once the session reaches its terminal state.
func (m *Manager) runSession(s *Session) {
	defer s.Ticker.Stop()

	for range s.Ticker.C {
		// Disconnects are resolved at the tick boundary, never mid-computation.
		if loser := s.Disconnected(); loser != "" {
			m.EndSession(s, s.Opponent(loser).Info())
			return
		}

		switch s.Status() {
		case constants.STATUS_FINISHED:
			return
		case constants.STATUS_WAITING:
			if s.WaitingExpired() {
				m.abortSession(s)
				return
			}
			// Both players arrived through the registry, so the session goes
			// live on its first tick.
			s.Activate()
		}

		winnerID, snapshot := s.Step()
		m.broadcastToSession(s, constants.MSG_GAME_UPDATE, map[string]any{
			"gameState": snapshot,
		})

		if winnerID != "" {
			m.EndSession(s, s.PlayerInfo(winnerID))
			return
		}
	}
}

// EndSession finalizes a session exactly once: it announces the winner, then
// discards the mappings after a grace period so the final frames drain first.
func (m *Manager) EndSession(s *Session, winner models.PlayerInfo) {
	if !s.markEnded(winner.UserID) {
		return
	}

	log.Printf("Session %s ended, winner: %s (%s)", s.ID, winner.UserID, winner.Username)

	m.broadcastToSession(s, constants.MSG_GAME_ENDED, map[string]any{
		"winner": winner,
	})

	time.AfterFunc(constants.GRACE_PERIOD, func() {
		m.removeSession(s)
	})
}

// abortSession tears down a session that never became active. Nobody wins;
// both players become queue-eligible again.
func (m *Manager) abortSession(s *Session) {
	if !s.markEnded("") {
		return
	}

	log.Printf("Session %s aborted: still waiting after %v", s.ID, constants.WAITING_TIMEOUT)
	m.removeSession(s)
}

func (m *Manager) removeSession(s *Session) {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	delete(m.Sessions, s.ID)
	if m.PlayerSession[s.Player1.ID] == s.ID {
		delete(m.PlayerSession, s.Player1.ID)
	}
	if m.PlayerSession[s.Player2.ID] == s.ID {
		delete(m.PlayerSession, s.Player2.ID)
	}
}

func (m *Manager) broadcastToSession(s *Session, msgType string, data map[string]any) {
	m.Registry.Send(s.Player1.ID, msgType, data)
	m.Registry.Send(s.Player2.ID, msgType, data)
}

// HandleDisconnect is the registry's close callback. The user leaves the
// queue immediately; a session they were playing in flags them for forfeit,
// which the tick loop turns into a game_ended for the opponent.
func (m *Manager) HandleDisconnect(userID string) {
	m.LeaveQueue(userID)

	session, err := m.SessionFor(userID)
	if err != nil {
		return
	}

	log.Printf("Player %s disconnected from session %s", userID, session.ID)
	session.MarkDisconnected(userID)
}
