// Package mutation holds one handler per kind of state change. Each handler
// validates its input, persists it through the store and, only on success,
// broadcasts the persisted result.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"huddle/internal/events"
	"huddle/internal/models"
	"huddle/internal/storage"
)

// Broadcaster fans events out to connected clients.
type Broadcaster interface {
	Broadcast(e events.Event)
	BroadcastExcept(e events.Event, excludeClientID string)
}

// Service implements the mutation handlers on top of a store.
type Service struct {
	store  storage.Store
	hub    Broadcaster
	clock  *Clock
	logger *slog.Logger
}

// New builds a Service. A nil clock uses the wall clock.
func New(store storage.Store, hub Broadcaster, clock *Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = NewClock(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, hub: hub, clock: clock, logger: logger}
}

// ListTasks is the non-realtime read path clients use to load the list.
func (s *Service) ListTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, s.storeFailed("list_tasks", err)
	}
	return tasks, nil
}

// AddTask creates a task and announces it with taskAdded.
func (s *Service) AddTask(ctx context.Context, req models.NewTask) (models.Task, error) {
	if err := models.Validate(req); err != nil {
		observe("add_task", err)
		return models.Task{}, err
	}
	task, err := s.store.CreateTask(ctx, req.Task)
	if err != nil {
		return models.Task{}, s.storeFailed("add_task", err)
	}
	observe("add_task", nil)
	s.hub.Broadcast(events.TaskAdded{Task: task})
	return task, nil
}

// UpdateTask merges patch into the task and announces it with taskUpdated.
func (s *Service) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	if err := models.Validate(patch); err != nil {
		observe("update_task", err)
		return models.Task{}, err
	}
	task, err := s.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return models.Task{}, s.storeFailed("update_task", err)
	}
	observe("update_task", nil)
	s.hub.Broadcast(events.TaskUpdated{Task: task})
	return task, nil
}

// DeleteTask removes the task and announces it with taskDeleted.
func (s *Service) DeleteTask(ctx context.Context, id string) (models.Task, error) {
	task, err := s.store.DeleteTask(ctx, id)
	if err != nil {
		return models.Task{}, s.storeFailed("delete_task", err)
	}
	observe("delete_task", nil)
	s.hub.Broadcast(events.TaskDeleted{Task: task})
	return task, nil
}

// ChatHistory returns the whole chat log for hydration.
func (s *Service) ChatHistory(ctx context.Context) ([]models.ChatMessage, error) {
	msgs, err := s.store.ListChatMessages(ctx)
	if err != nil {
		return nil, s.storeFailed("chat_history", err)
	}
	return msgs, nil
}

// SendMessage stamps and stores a chat message, then sends newMessage to
// every client including the sender.
func (s *Service) SendMessage(ctx context.Context, req models.NewChatMessage) (models.ChatMessage, error) {
	if err := models.Validate(req); err != nil {
		observe("send_message", err)
		return models.ChatMessage{}, err
	}
	msg, err := s.store.CreateChatMessage(ctx, models.ChatMessage{
		ID:        uuid.NewString(),
		User:      strings.TrimSpace(req.User),
		Text:      strings.TrimSpace(req.Text),
		Timestamp: s.clock.Next(),
	})
	if err != nil {
		return models.ChatMessage{}, s.storeFailed("send_message", err)
	}
	observe("send_message", nil)
	s.hub.Broadcast(events.NewMessage{Message: msg})
	return msg, nil
}

// DeleteMessage removes the message stamped timestamp. An unknown timestamp
// is not an error and broadcasts nothing.
func (s *Service) DeleteMessage(ctx context.Context, timestamp string) error {
	if _, err := s.store.DeleteChatMessageByTimestamp(ctx, timestamp); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observe("delete_message", err)
			return nil
		}
		return s.storeFailed("delete_message", err)
	}
	observe("delete_message", nil)
	s.hub.Broadcast(events.MessageDeleted{Timestamp: timestamp})
	return nil
}

// Typing tells everyone but the sender that user started typing.
func (s *Service) Typing(senderID, user string) error {
	name, err := typingUser(user)
	if err != nil {
		return err
	}
	s.hub.BroadcastExcept(events.UserTyping{User: name}, senderID)
	return nil
}

// StopTyping tells everyone but the sender that user stopped typing.
func (s *Service) StopTyping(senderID, user string) error {
	name, err := typingUser(user)
	if err != nil {
		return err
	}
	s.hub.BroadcastExcept(events.UserStoppedTyping{User: name}, senderID)
	return nil
}

func typingUser(user string) (string, error) {
	req := models.TypingSignal{User: strings.TrimSpace(user)}
	if err := models.Validate(req); err != nil {
		return "", err
	}
	return req.User, nil
}

// HandleEvent routes an inbound realtime event to its handler. The returned
// error is meant for the sending client only.
func (s *Service) HandleEvent(ctx context.Context, clientID string, e events.Event) error {
	switch ev := e.(type) {
	case events.SendMessage:
		_, err := s.SendMessage(ctx, models.NewChatMessage{User: ev.User, Text: ev.Text})
		return err
	case events.DeleteMessage:
		return s.DeleteMessage(ctx, ev.Timestamp)
	case events.Typing:
		return s.Typing(clientID, ev.User)
	case events.StopTyping:
		return s.StopTyping(clientID, ev.User)
	default:
		return fmt.Errorf("unsupported event %s", e.Name())
	}
}

// storeFailed records a failed store call. Not-found and validation errors
// are expected outcomes; anything else is logged as a store failure.
func (s *Service) storeFailed(op string, err error) error {
	observe(op, err)
	if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, models.ErrValidation) {
		s.logger.Error("store operation failed", slog.String("op", op), slog.String("error", err.Error()))
	}
	return err
}
