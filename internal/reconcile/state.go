// Package reconcile keeps a client's local copy of the task list and chat and
// merges realtime events into it by id (tasks) or timestamp (messages).
package reconcile

import (
	"sync"
	"time"

	"huddle/internal/events"
	"huddle/internal/models"
)

// TypingTTL is how long a typing indicator survives without a refresh.
const TypingTTL = time.Second

// State is the local view of one client. It is safe for concurrent use.
type State struct {
	mu       sync.Mutex
	tasks    []models.Task
	messages []models.ChatMessage
	typing   map[string]time.Time
	now      func() time.Time

	// Deletions seen before the first chatLog. The log may have been read
	// before the delete happened, so these timestamps are dropped from it.
	hydrated bool
	deleted  map[string]struct{}
}

// New returns an empty State.
func New() *State {
	return &State{
		typing:  make(map[string]time.Time),
		deleted: make(map[string]struct{}),
		now:     time.Now,
	}
}

// Tasks returns a copy of the local task list.
func (s *State) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Task(nil), s.tasks...)
}

// Messages returns a copy of the local chat log.
func (s *State) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.messages...)
}

// SetTasks replaces the task list with the result of a fetch.
func (s *State) SetTasks(tasks []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]models.Task(nil), tasks...)
}

// TaskCreated appends the task returned by a successful create request,
// unless its broadcast echo already put it there.
func (s *State) TaskCreated(t models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertTask(t)
}

// TaskRemoved drops a task after a successful delete request.
func (s *State) TaskRemoved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeTask(id)
}

// MessageRemoved drops a message as soon as its deletion is requested.
func (s *State) MessageRemoved(timestamp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forget(timestamp)
}

// Apply merges one server event into the local state and reports whether
// anything changed. Events for unknown ids or timestamps are no-ops.
func (s *State) Apply(e events.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := e.(type) {
	case events.TaskAdded:
		return s.insertTask(ev.Task)
	case events.TaskUpdated:
		for i := range s.tasks {
			if s.tasks[i].ID == ev.Task.ID {
				changed := s.tasks[i] != ev.Task
				s.tasks[i] = ev.Task
				return changed
			}
		}
		return false
	case events.TaskDeleted:
		return s.removeTask(ev.Task.ID)
	case events.ChatLog:
		s.hydrate(ev.Messages)
		return true
	case events.NewMessage:
		if s.messageIndex(ev.Message.Timestamp) >= 0 {
			return false
		}
		s.messages = append(s.messages, ev.Message)
		return true
	case events.MessageDeleted:
		return s.forget(ev.Timestamp)
	case events.UserTyping:
		_, seen := s.typing[ev.User]
		s.typing[ev.User] = s.now()
		return !seen
	case events.UserStoppedTyping:
		_, seen := s.typing[ev.User]
		delete(s.typing, ev.User)
		return seen
	}
	return false
}

// TypingUsers lists users currently typing, dropping indicators whose last
// signal is older than TypingTTL.
func (s *State) TypingUsers(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.typing))
	for user, at := range s.typing {
		if now.Sub(at) > TypingTTL {
			delete(s.typing, user)
			continue
		}
		users = append(users, user)
	}
	return users
}

// hydrate replaces the chat log, keeping messages newer than the log that
// arrived between registration and hydration.
func (s *State) hydrate(log []models.ChatMessage) {
	var newest string
	if len(log) > 0 {
		newest = log[len(log)-1].Timestamp
	}
	merged := make([]models.ChatMessage, 0, len(log))
	for _, m := range log {
		if _, gone := s.deleted[m.Timestamp]; !gone {
			merged = append(merged, m)
		}
	}
	for _, m := range s.messages {
		if m.Timestamp > newest {
			merged = append(merged, m)
		}
	}
	s.messages = merged
	s.hydrated = true
	s.deleted = nil
}

// forget removes a message and, until the chat log has arrived, remembers
// the timestamp so hydration cannot bring it back.
func (s *State) forget(timestamp string) bool {
	if !s.hydrated {
		s.deleted[timestamp] = struct{}{}
	}
	return s.removeMessage(timestamp)
}

func (s *State) insertTask(t models.Task) bool {
	for _, existing := range s.tasks {
		if existing.ID == t.ID {
			return false
		}
	}
	s.tasks = append(s.tasks, t)
	return true
}

func (s *State) removeTask(id string) bool {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (s *State) messageIndex(timestamp string) int {
	for i := range s.messages {
		if s.messages[i].Timestamp == timestamp {
			return i
		}
	}
	return -1
}

func (s *State) removeMessage(timestamp string) bool {
	i := s.messageIndex(timestamp)
	if i < 0 {
		return false
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	return true
}
