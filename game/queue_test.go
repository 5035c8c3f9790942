package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueRejectsDuplicates(t *testing.T) {
	q := NewQueue()
	p := newTestPlayer("user-a", "Alice")

	require.NoError(t, q.Enqueue(p))
	err := q.Enqueue(p)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, 1, q.Len())
}

func TestQueueDequeueAbsentIsNoop(t *testing.T) {
	q := NewQueue()
	q.Dequeue("nobody")
	assert.Equal(t, 0, q.Len())

	require.NoError(t, q.Enqueue(newTestPlayer("user-a", "Alice")))
	q.Dequeue("nobody")
	assert.Equal(t, 1, q.Len())
}

func TestQueuePairsLongestWaitingInFIFOOrder(t *testing.T) {
	q := NewQueue()
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("user-%d", i)
		require.NoError(t, q.Enqueue(newTestPlayer(id, id)))
	}

	a, b, ok := q.TryPair()
	require.True(t, ok)
	assert.Equal(t, "user-1", a.ID)
	assert.Equal(t, "user-2", b.ID)

	a, b, ok = q.TryPair()
	require.True(t, ok)
	assert.Equal(t, "user-3", a.ID)
	assert.Equal(t, "user-4", b.ID)

	_, _, ok = q.TryPair()
	assert.False(t, ok, "a single waiting user must not be paired")
	assert.True(t, q.Contains("user-5"))
}

func TestQueueOrderPreservedAfterVoluntaryLeave(t *testing.T) {
	q := NewQueue()
	for _, id := range []string{"user-1", "user-2", "user-3"} {
		require.NoError(t, q.Enqueue(newTestPlayer(id, id)))
	}

	q.Dequeue("user-2")

	a, b, ok := q.TryPair()
	require.True(t, ok)
	assert.Equal(t, "user-1", a.ID)
	assert.Equal(t, "user-3", b.ID)
}

func TestQueueWaitingSnapshot(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(newTestPlayer("user-1", "one")))
	require.NoError(t, q.Enqueue(newTestPlayer("user-2", "two")))

	waiting := q.Waiting()
	require.Len(t, waiting, 2)
	assert.Equal(t, "user-1", waiting[0].ID)
	assert.Equal(t, "user-2", waiting[1].ID)
}
