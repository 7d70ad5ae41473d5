package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"huddle/internal/models"
	"huddle/internal/storage"
)

// Store wraps access to the SQLite database and implements storage.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("sqlite store ready", slog.String("path", dbPath))
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            task TEXT NOT NULL,
            completed BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            user TEXT NOT NULL,
            text TEXT NOT NULL,
            timestamp TEXT NOT NULL UNIQUE
        );`,
		`CREATE TRIGGER IF NOT EXISTS trg_tasks_updated
            AFTER UPDATE ON tasks
            FOR EACH ROW BEGIN
                UPDATE tasks SET updated_at = CURRENT_TIMESTAMP WHERE seq = OLD.seq;
            END;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ListTasks returns every task in creation order.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task, completed FROM tasks ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Task, &t.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a new, not yet completed task.
func (s *Store) CreateTask(ctx context.Context, text string) (models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Task{}, fmt.Errorf("%w: task is required", models.ErrValidation)
	}

	t := models.Task{ID: uuid.NewString(), Task: text}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks(id, task, completed) VALUES(?, ?, ?)`, t.ID, t.Task, t.Completed)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	var t models.Task
	err := s.db.QueryRowContext(ctx, `SELECT id, task, completed FROM tasks WHERE id = ?`, id).
		Scan(&t.ID, &t.Task, &t.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask merges the present patch fields into the stored row in a single statement.
func (s *Store) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	var text, completed any
	if patch.Task != nil {
		text = strings.TrimSpace(*patch.Task)
	}
	if patch.Completed != nil {
		completed = *patch.Completed
	}

	var t models.Task
	err := s.db.QueryRowContext(ctx, `UPDATE tasks
        SET task = COALESCE(?, task), completed = COALESCE(?, completed)
        WHERE id = ?
        RETURNING id, task, completed`, text, completed, id).
		Scan(&t.ID, &t.Task, &t.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

// DeleteTask removes a task by id and returns the removed row.
func (s *Store) DeleteTask(ctx context.Context, id string) (models.Task, error) {
	var t models.Task
	err := s.db.QueryRowContext(ctx, `DELETE FROM tasks WHERE id = ? RETURNING id, task, completed`, id).
		Scan(&t.ID, &t.Task, &t.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("delete task: %w", err)
	}
	return t, nil
}

// ListChatMessages returns the chat log ordered by timestamp.
func (s *Store) ListChatMessages(ctx context.Context) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user, text, timestamp FROM chat_messages ORDER BY timestamp ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.User, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CreateChatMessage stores a message. The timestamp must be unique.
func (s *Store) CreateChatMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO chat_messages(id, user, text, timestamp) VALUES(?, ?, ?, ?)`,
		msg.ID, msg.User, msg.Text, msg.Timestamp)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}

// DeleteChatMessageByTimestamp removes the message stamped with timestamp.
func (s *Store) DeleteChatMessageByTimestamp(ctx context.Context, timestamp string) (models.ChatMessage, error) {
	var m models.ChatMessage
	err := s.db.QueryRowContext(ctx, `DELETE FROM chat_messages WHERE timestamp = ? RETURNING id, user, text, timestamp`, timestamp).
		Scan(&m.ID, &m.User, &m.Text, &m.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, fmt.Errorf("chat message %s: %w", timestamp, storage.ErrNotFound)
	}
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("delete chat message: %w", err)
	}
	return m, nil
}
