package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"huddle/internal/events"
	"huddle/internal/models"
)

func TestTaskEchoIsDeduplicated(t *testing.T) {
	s := New()
	task := models.Task{ID: "1", Task: "buy milk"}

	assert.True(t, s.Apply(events.TaskAdded{Task: task}))
	s.TaskCreated(task)
	assert.False(t, s.Apply(events.TaskAdded{Task: task}))

	assert.Equal(t, []models.Task{task}, s.Tasks())
}

func TestTaskUpdateReplacesMatchingID(t *testing.T) {
	s := New()
	s.SetTasks([]models.Task{{ID: "1", Task: "buy milk"}, {ID: "2", Task: "walk dog"}})

	assert.True(t, s.Apply(events.TaskUpdated{Task: models.Task{ID: "2", Task: "walk dog", Completed: true}}))
	assert.False(t, s.Apply(events.TaskUpdated{Task: models.Task{ID: "3", Task: "ghost"}}))

	assert.Equal(t, []models.Task{
		{ID: "1", Task: "buy milk"},
		{ID: "2", Task: "walk dog", Completed: true},
	}, s.Tasks())
}

func TestDeletesOfUnknownEntitiesAreNoOps(t *testing.T) {
	s := New()
	s.SetTasks([]models.Task{{ID: "1", Task: "buy milk"}})

	assert.False(t, s.Apply(events.TaskDeleted{Task: models.Task{ID: "nope"}}))
	assert.False(t, s.Apply(events.MessageDeleted{Timestamp: "nope"}))
	assert.True(t, s.Apply(events.TaskDeleted{Task: models.Task{ID: "1"}}))
	assert.Empty(t, s.Tasks())

	s.TaskRemoved("1")
	assert.Empty(t, s.Tasks())
}

func TestMessagesMergeByTimestamp(t *testing.T) {
	s := New()
	first := models.ChatMessage{User: "A", Text: "one", Timestamp: "2024-05-01T10:00:00.000Z"}
	second := models.ChatMessage{User: "B", Text: "two", Timestamp: "2024-05-01T10:00:01.000Z"}

	assert.True(t, s.Apply(events.NewMessage{Message: first}))
	assert.False(t, s.Apply(events.NewMessage{Message: first}))
	assert.True(t, s.Apply(events.NewMessage{Message: second}))

	s.MessageRemoved(first.Timestamp)
	assert.Equal(t, []models.ChatMessage{second}, s.Messages())
	assert.False(t, s.Apply(events.MessageDeleted{Timestamp: first.Timestamp}))
}

func TestChatLogKeepsMessagesNewerThanTheLog(t *testing.T) {
	s := New()
	old := models.ChatMessage{Text: "stale", Timestamp: "2024-05-01T09:00:00.000Z"}
	logged := models.ChatMessage{Text: "logged", Timestamp: "2024-05-01T10:00:00.000Z"}
	raced := models.ChatMessage{Text: "raced", Timestamp: "2024-05-01T10:00:05.000Z"}

	s.Apply(events.NewMessage{Message: old})
	s.Apply(events.NewMessage{Message: raced})
	s.Apply(events.ChatLog{Messages: []models.ChatMessage{logged}})

	assert.Equal(t, []models.ChatMessage{logged, raced}, s.Messages())
}

func TestTypingIndicatorsExpire(t *testing.T) {
	s := New()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }

	assert.True(t, s.Apply(events.UserTyping{User: "A"}))
	assert.False(t, s.Apply(events.UserTyping{User: "A"}))
	s.Apply(events.UserTyping{User: "B"})
	assert.ElementsMatch(t, []string{"A", "B"}, s.TypingUsers(start.Add(500*time.Millisecond)))

	assert.True(t, s.Apply(events.UserStoppedTyping{User: "B"}))
	assert.Equal(t, []string{"A"}, s.TypingUsers(start.Add(time.Second)))
	assert.Empty(t, s.TypingUsers(start.Add(2*time.Second)))
}

func TestDeleteBeforeChatLogIsNotResurrected(t *testing.T) {
	s := New()
	gone := models.ChatMessage{ID: "1", User: "A", Text: "gone", Timestamp: "2024-05-01T10:00:00.000Z"}
	kept := models.ChatMessage{ID: "2", User: "B", Text: "kept", Timestamp: "2024-05-01T10:00:01.000Z"}

	// The history was read before the delete, but the delete is queued first.
	assert.False(t, s.Apply(events.MessageDeleted{Timestamp: gone.Timestamp}))
	s.Apply(events.ChatLog{Messages: []models.ChatMessage{gone, kept}})

	assert.Equal(t, []models.ChatMessage{kept}, s.Messages())
}

func TestLocalRemoveBeforeChatLogIsNotResurrected(t *testing.T) {
	s := New()
	gone := models.ChatMessage{Text: "gone", Timestamp: "2024-05-01T10:00:00.000Z"}

	s.MessageRemoved(gone.Timestamp)
	s.Apply(events.ChatLog{Messages: []models.ChatMessage{gone}})

	assert.Empty(t, s.Messages())
}

func TestLaterChatLogIsTakenAsIs(t *testing.T) {
	s := New()
	msg := models.ChatMessage{Text: "hi", Timestamp: "2024-05-01T10:00:00.000Z"}

	s.Apply(events.ChatLog{Messages: []models.ChatMessage{}})
	s.Apply(events.MessageDeleted{Timestamp: msg.Timestamp})
	s.Apply(events.ChatLog{Messages: []models.ChatMessage{msg}})

	assert.Equal(t, []models.ChatMessage{msg}, s.Messages())
}
