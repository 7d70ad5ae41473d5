// Package mongo implements storage.Store on top of a MongoDB database, the
// document store the chat and to-do collections were first designed for.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"huddle/internal/models"
	"huddle/internal/storage"
)

const (
	// DefaultDatabase is used when the connection string names no database.
	DefaultDatabase = "huddle"

	tasksCollection = "tasks"
	chatCollection  = "chatmessages"
)

// Store keeps tasks and chat messages in two MongoDB collections.
type Store struct {
	client *mongo.Client
	tasks  *mongo.Collection
	chat   *mongo.Collection
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

type taskDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Task      string             `bson:"task"`
	Completed bool               `bson:"completed"`
}

func (d taskDoc) model() models.Task {
	return models.Task{ID: d.ID.Hex(), Task: d.Task, Completed: d.Completed}
}

// Open connects to uri, verifies the connection and prepares indexes.
func Open(ctx context.Context, uri string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dbName, err := DatabaseName(uri)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := newStore(client.Database(dbName), logger)
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("mongo store ready", slog.String("database", dbName))
	return s, nil
}

func newStore(db *mongo.Database, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: db.Client(),
		tasks:  db.Collection(tasksCollection),
		chat:   db.Collection(chatCollection),
		logger: logger,
	}
}

// DatabaseName extracts the database from a connection string, falling back
// to DefaultDatabase.
func DatabaseName(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("parse mongo uri: %w", err)
	}
	if cs.Database == "" {
		return DefaultDatabase, nil
	}
	return cs.Database, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.chat.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create chat indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// ParseTaskID converts an opaque task id to an ObjectID. Ids that are not
// valid ObjectIDs cannot name a stored task and report storage.ErrNotFound.
func ParseTaskID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	return oid, nil
}

// CreateTask inserts a new, not yet completed task.
func (s *Store) CreateTask(ctx context.Context, text string) (models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Task{}, fmt.Errorf("%w: task is required", models.ErrValidation)
	}

	doc := taskDoc{ID: primitive.NewObjectID(), Task: text}
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return doc.model(), nil
}

// ListTasks returns every task in insertion order.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	cur, err := s.tasks.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.model())
	}
	return tasks, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	oid, err := ParseTaskID(id)
	if err != nil {
		return models.Task{}, err
	}
	var doc taskDoc
	if err := s.tasks.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return models.Task{}, taskErr(id, "get task", err)
	}
	return doc.model(), nil
}

// UpdateTask sets the present patch fields and returns the updated document.
func (s *Store) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	oid, err := ParseTaskID(id)
	if err != nil {
		return models.Task{}, err
	}
	if patch.Empty() {
		return s.GetTask(ctx, id)
	}

	set := bson.M{}
	if patch.Task != nil {
		set["task"] = strings.TrimSpace(*patch.Task)
	}
	if patch.Completed != nil {
		set["completed"] = *patch.Completed
	}

	var doc taskDoc
	err = s.tasks.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return models.Task{}, taskErr(id, "update task", err)
	}
	return doc.model(), nil
}

// DeleteTask removes a task by id and returns the removed document.
func (s *Store) DeleteTask(ctx context.Context, id string) (models.Task, error) {
	oid, err := ParseTaskID(id)
	if err != nil {
		return models.Task{}, err
	}
	var doc taskDoc
	if err := s.tasks.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return models.Task{}, taskErr(id, "delete task", err)
	}
	return doc.model(), nil
}

// ListChatMessages returns the chat log ordered by timestamp.
func (s *Store) ListChatMessages(ctx context.Context) ([]models.ChatMessage, error) {
	cur, err := s.chat.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	msgs := []models.ChatMessage{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode chat messages: %w", err)
	}
	return msgs, nil
}

// CreateChatMessage stores a message. The timestamp must be unique.
func (s *Store) CreateChatMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, err := s.chat.InsertOne(ctx, msg); err != nil {
		return models.ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}

// DeleteChatMessageByTimestamp removes the message stamped with timestamp.
func (s *Store) DeleteChatMessageByTimestamp(ctx context.Context, timestamp string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.chat.FindOneAndDelete(ctx, bson.M{"timestamp": timestamp}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ChatMessage{}, fmt.Errorf("chat message %s: %w", timestamp, storage.ErrNotFound)
	}
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("delete chat message: %w", err)
	}
	return msg, nil
}

func taskErr(id, op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
