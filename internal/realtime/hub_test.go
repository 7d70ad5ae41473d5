package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/events"
	"huddle/internal/models"
)

func receive(t *testing.T, c *Client) events.Event {
	t.Helper()
	select {
	case frame, ok := <-c.send:
		require.True(t, ok, "queue closed")
		e, err := events.Decode(frame)
		require.NoError(t, err)
		return e
	default:
		t.Fatalf("client %s has nothing queued", c.ID)
		return nil
	}
}

func TestBroadcastReachesEveryRegisteredClient(t *testing.T) {
	hub := NewHub(nil)
	a, b := newClient("a", 4), newClient("b", 4)
	hub.Register(a)
	hub.Register(b)
	require.Equal(t, 2, hub.ClientCount())

	added := events.TaskAdded{Task: models.Task{ID: "1", Task: "buy milk"}}
	hub.Broadcast(added)

	assert.Equal(t, added, receive(t, a))
	assert.Equal(t, added, receive(t, b))
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := NewHub(nil)
	a, b := newClient("a", 4), newClient("b", 4)
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastExcept(events.UserTyping{User: "A"}, "a")

	assert.Equal(t, events.UserTyping{User: "A"}, receive(t, b))
	assert.Empty(t, a.send)
}

func TestLateClientMissesEarlierBroadcast(t *testing.T) {
	hub := NewHub(nil)
	hub.Broadcast(events.MessageDeleted{Timestamp: "T"})

	late := newClient("late", 4)
	hub.Register(late)
	assert.Empty(t, late.send)
}

func TestUnregisterClosesQueueOnce(t *testing.T) {
	hub := NewHub(nil)
	a := newClient("a", 1)
	hub.Register(a)

	hub.Unregister(a)
	hub.Unregister(a)
	assert.Equal(t, 0, hub.ClientCount())

	_, ok := <-a.send
	assert.False(t, ok)
	assert.False(t, hub.Send("a", events.Error{Message: "gone"}))
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(nil)
	slow, fast := newClient("slow", 1), newClient("fast", 8)
	hub.Register(slow)
	hub.Register(fast)

	hub.Broadcast(events.UserTyping{User: "A"})
	hub.Broadcast(events.UserStoppedTyping{User: "A"})

	assert.Equal(t, 1, hub.ClientCount())
	assert.Len(t, fast.send, 2)
}

func TestSendTargetsOneClient(t *testing.T) {
	hub := NewHub(nil)
	a, b := newClient("a", 4), newClient("b", 4)
	hub.Register(a)
	hub.Register(b)

	require.True(t, hub.Send("b", events.Error{Message: "nope"}))
	assert.Equal(t, events.Error{Message: "nope"}, receive(t, b))
	assert.Empty(t, a.send)
}

func TestCloseDisconnectsEveryone(t *testing.T) {
	hub := NewHub(nil)
	a := newClient("a", 1)
	hub.Register(a)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
	_, ok := <-a.send
	assert.False(t, ok)
}
