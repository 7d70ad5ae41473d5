// Package storage defines the typed document store boundary shared by the
// SQLite and MongoDB engines.
package storage

import (
	"context"
	"errors"

	"huddle/internal/models"
)

// ErrNotFound is returned when no record matches the id or timestamp.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary for tasks and chat messages. Every
// operation is atomic at the single-record level.
type Store interface {
	CreateTask(ctx context.Context, text string) (models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id string) (models.Task, error)

	// ListChatMessages returns the whole chat log ordered by timestamp ascending.
	ListChatMessages(ctx context.Context) ([]models.ChatMessage, error)
	CreateChatMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
	DeleteChatMessageByTimestamp(ctx context.Context, timestamp string) (models.ChatMessage, error)

	Ping(ctx context.Context) error
	Close() error
}
