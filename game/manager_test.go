package game

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tankbattle-backend/constants"
	"tankbattle-backend/models"
	"tankbattle-backend/registry"
)

func newTestManager() *Manager {
	return NewManager(registry.New())
}

// newConnection builds a client the way a transport handler would: identity
// unbound until the first join frame.
func newConnection(connID string) *models.Player {
	return &models.Player{
		ConnID:   connID,
		Send:     make(chan []byte, 256),
		JoinedAt: time.Now(),
	}
}

func joinQueueFrame(userID, username string) []byte {
	return []byte(fmt.Sprintf(`{"type":"join_queue","userId":%q,"username":%q}`, userID, username))
}

func inputFrame(userID string, controls models.ControlInput) []byte {
	raw, _ := json.Marshal(map[string]any{
		"type":     constants.MSG_PLAYER_INPUT,
		"userId":   userID,
		"controls": controls,
	})
	return raw
}

// recvFrame drains a client's send channel until a frame of the wanted type
// arrives.
func recvFrame(t *testing.T, client *models.Player, msgType string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case raw, ok := <-client.Send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %s", msgType)
			}
			var msg map[string]any
			require.NoError(t, json.Unmarshal(raw, &msg))
			if msg["type"] == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func assertNoFrame(t *testing.T, client *models.Player, msgType string, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case raw, ok := <-client.Send:
			if !ok {
				return
			}
			var msg map[string]any
			if json.Unmarshal(raw, &msg) == nil && msg["type"] == msgType {
				t.Fatalf("unexpected %s frame: %v", msgType, msg)
			}
		case <-deadline:
			return
		}
	}
}

func TestTwoQueuedPlayersGetGameStarted(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")
	connB := newConnection("conn-b")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connB, joinQueueFrame("user-b", "Bob"))

	for _, conn := range []*models.Player{connA, connB} {
		started := recvFrame(t, conn, constants.MSG_GAME_STARTED, 2*time.Second)

		tanks, ok := started["tanks"].(map[string]any)
		require.True(t, ok, "game_started must carry a tanks map")
		require.Len(t, tanks, 2)
		for _, id := range []string{"user-a", "user-b"} {
			tank, ok := tanks[id].(map[string]any)
			require.True(t, ok, "missing tank for %s", id)
			assert.EqualValues(t, constants.MAX_HEALTH, tank["health"])
		}
		assert.NotEmpty(t, started["gameRoom"])
	}

	session, err := m.SessionFor("user-a")
	require.NoError(t, err)
	assert.True(t, session.HasPlayer("user-b"))
}

func TestThirdUserRemainsQueuedDuringMatch(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")
	connB := newConnection("conn-b")
	connC := newConnection("conn-c")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connB, joinQueueFrame("user-b", "Bob"))
	recvFrame(t, connA, constants.MSG_GAME_STARTED, 2*time.Second)

	m.HandleMessage(connC, joinQueueFrame("user-c", "Carol"))

	assert.True(t, m.Queue.Contains("user-c"))
	assert.Equal(t, 1, m.Queue.Len())
	assertNoFrame(t, connC, constants.MSG_GAME_STARTED, 200*time.Millisecond)

	// A fourth distinct user pairs with the waiting third.
	connD := newConnection("conn-d")
	m.HandleMessage(connD, joinQueueFrame("user-d", "Dave"))
	recvFrame(t, connC, constants.MSG_GAME_STARTED, 2*time.Second)
}

func TestJoinQueueTwiceReturnsAlreadyQueued(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))

	errFrame := recvFrame(t, connA, constants.MSG_ERROR, time.Second)
	assert.Equal(t, "ALREADY_QUEUED", errFrame["code"])
	assert.Equal(t, 1, m.Queue.Len())
}

func TestJoinQueueWhileInSessionReturnsAlreadyInSession(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")
	connB := newConnection("conn-b")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connB, joinQueueFrame("user-b", "Bob"))
	recvFrame(t, connA, constants.MSG_GAME_STARTED, 2*time.Second)

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	errFrame := recvFrame(t, connA, constants.MSG_ERROR, time.Second)
	assert.Equal(t, "ALREADY_IN_SESSION", errFrame["code"])
}

func TestLeaveQueueWhenNotQueuedIsNoop(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")

	m.HandleMessage(connA, []byte(`{"type":"leave_queue","userId":"user-a"}`))

	assertNoFrame(t, connA, constants.MSG_ERROR, 100*time.Millisecond)
	assert.Equal(t, 0, m.Queue.Len())
}

func TestLeaveQueueRemovesWaitingPlayer(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	require.True(t, m.Queue.Contains("user-a"))

	m.HandleMessage(connA, []byte(`{"type":"leave_queue","userId":"user-a"}`))
	assert.False(t, m.Queue.Contains("user-a"))
}

func TestHealthDepletionEndsGame(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")
	connB := newConnection("conn-b")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connB, joinQueueFrame("user-b", "Bob"))
	recvFrame(t, connA, constants.MSG_GAME_STARTED, 2*time.Second)

	session, err := m.SessionFor("user-a")
	require.NoError(t, err)

	// Put B's tank one well-aimed shot from defeat.
	session.Mutex.Lock()
	tankA := session.State.Tanks["user-a"]
	tankB := session.State.Tanks["user-b"]
	tankA.X, tankA.Y, tankA.Heading = 100, 300, 0
	tankB.X, tankB.Y = 150, 300
	tankB.Health = constants.PROJECTILE_DAMAGE
	session.Mutex.Unlock()

	m.HandleMessage(connA, inputFrame("user-a", models.ControlInput{Shoot: true}))

	ended := recvFrame(t, connA, constants.MSG_GAME_ENDED, 5*time.Second)
	winner, ok := ended["winner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-a", winner["userId"])
	assert.Equal(t, "Alice", winner["username"])

	recvFrame(t, connB, constants.MSG_GAME_ENDED, time.Second)

	// No further snapshots after the terminal notice.
	assertNoFrame(t, connA, constants.MSG_GAME_UPDATE, 300*time.Millisecond)

	// Mappings are discarded after the grace period.
	require.Eventually(t, func() bool {
		_, err := m.SessionFor("user-a")
		return err != nil
	}, constants.GRACE_PERIOD+time.Second, 50*time.Millisecond)
}

func TestDisconnectForfeitsToOpponent(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")
	connB := newConnection("conn-b")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connB, joinQueueFrame("user-b", "Bob"))
	recvFrame(t, connA, constants.MSG_GAME_STARTED, 2*time.Second)

	// B's transport closes.
	m.Registry.Unregister("user-b", "conn-b")

	ended := recvFrame(t, connA, constants.MSG_GAME_ENDED, 2*time.Second)
	winner, ok := ended["winner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-a", winner["userId"])

	require.Eventually(t, func() bool {
		_, err := m.SessionFor("user-a")
		return err != nil
	}, constants.GRACE_PERIOD+time.Second, 50*time.Millisecond)
}

func TestRequeueAfterForfeitIsAllowed(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")
	connB := newConnection("conn-b")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connB, joinQueueFrame("user-b", "Bob"))
	recvFrame(t, connA, constants.MSG_GAME_STARTED, 2*time.Second)

	m.Registry.Unregister("user-b", "conn-b")
	recvFrame(t, connA, constants.MSG_GAME_ENDED, 2*time.Second)

	require.Eventually(t, func() bool {
		_, err := m.SessionFor("user-a")
		return err != nil
	}, constants.GRACE_PERIOD+time.Second, 50*time.Millisecond)

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	assertNoFrame(t, connA, constants.MSG_ERROR, 100*time.Millisecond)
	assert.True(t, m.Queue.Contains("user-a"))
}

func TestInputForUserWithoutSessionIsDropped(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connA, inputFrame("user-a", models.ControlInput{Up: true}))

	// Dropped and logged, never an error frame.
	assertNoFrame(t, connA, constants.MSG_ERROR, 100*time.Millisecond)
}

func TestMalformedFrameIsDiscarded(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")

	m.HandleMessage(connA, []byte(`{not json`))

	// The connection survives and later frames still work.
	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	assert.True(t, m.Queue.Contains("user-a"))
}

func TestUnknownMessageTypeIsIgnored(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")

	m.HandleMessage(connA, []byte(`{"type":"fly_to_moon","userId":"user-a"}`))
	assertNoFrame(t, connA, constants.MSG_ERROR, 100*time.Millisecond)
}

func TestInputWithMismatchedIdentityIsDropped(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")
	connB := newConnection("conn-b")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))
	m.HandleMessage(connB, joinQueueFrame("user-b", "Bob"))
	recvFrame(t, connA, constants.MSG_GAME_STARTED, 2*time.Second)

	session, err := m.SessionFor("user-b")
	require.NoError(t, err)

	// A's connection claims B's identity; the frame must not move B's tank.
	beforeX := session.Snapshot().Tanks["user-b"].X
	m.HandleMessage(connA, inputFrame("user-b", models.ControlInput{Up: true}))

	time.Sleep(3 * constants.TICK_RATE)
	assert.Equal(t, beforeX, session.Snapshot().Tanks["user-b"].X)
}

func TestPlayerJoinedBroadcastToWaitingPlayers(t *testing.T) {
	m := newTestManager()
	connA := newConnection("conn-a")

	m.HandleMessage(connA, joinQueueFrame("user-a", "Alice"))

	joined := recvFrame(t, connA, constants.MSG_PLAYER_JOINED, time.Second)
	players, ok := joined["players"].([]any)
	require.True(t, ok)
	require.Len(t, players, 1)
	first, ok := players[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-a", first["userId"])
}
