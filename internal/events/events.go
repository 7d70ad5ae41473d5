// Package events defines every message exchanged on the realtime channel as
// a closed set of typed events, and the JSON envelope that carries them.
//
// A frame on the wire is {"event": "<name>", "data": <payload>}. Payload
// shapes follow the event table: task events carry a Task, newMessage a
// ChatMessage, messageDeleted the bare timestamp string, and the typing
// notifications the bare user name.
package events

import (
	"huddle/internal/models"
)

// Name identifies an event kind on the wire.
type Name string

// Event names as they appear in the envelope.
const (
	NameChatLog           Name = "chatLog"
	NameNewMessage        Name = "newMessage"
	NameMessageDeleted    Name = "messageDeleted"
	NameUserTyping        Name = "userTyping"
	NameUserStoppedTyping Name = "userStoppedTyping"
	NameTaskAdded         Name = "taskAdded"
	NameTaskUpdated       Name = "taskUpdated"
	NameTaskDeleted       Name = "taskDeleted"
	NameError             Name = "error"

	NameSendMessage   Name = "sendMessage"
	NameDeleteMessage Name = "deleteMessage"
	NameTyping        Name = "typing"
	NameStopTyping    Name = "stopTyping"
)

// Event is implemented only by the types in this package.
type Event interface {
	Name() Name
	payload() any
}

// Server to client events.

// ChatLog hydrates a freshly connected client with the whole chat history.
type ChatLog struct{ Messages []models.ChatMessage }

// NewMessage announces a stored chat message to every client.
type NewMessage struct{ Message models.ChatMessage }

// MessageDeleted announces that the message with Timestamp is gone.
type MessageDeleted struct{ Timestamp string }

// UserTyping tells the other clients that User is typing.
type UserTyping struct{ User string }

// UserStoppedTyping clears a UserTyping indicator.
type UserStoppedTyping struct{ User string }

// TaskAdded carries a newly created task.
type TaskAdded struct{ Task models.Task }

// TaskUpdated carries a task after an update.
type TaskUpdated struct{ Task models.Task }

// TaskDeleted carries the task as it was before removal.
type TaskDeleted struct{ Task models.Task }

// Error reports a failed request back to the client that sent it.
type Error struct {
	Message string `json:"message"`
}

// Client to server events.

// SendMessage posts a chat message.
type SendMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// DeleteMessage removes the message stamped Timestamp.
type DeleteMessage struct {
	Timestamp string `json:"timestamp"`
}

// Typing signals that User started typing.
type Typing struct {
	User string `json:"user"`
}

// StopTyping signals that User stopped typing.
type StopTyping struct {
	User string `json:"user"`
}

func (ChatLog) Name() Name           { return NameChatLog }
func (NewMessage) Name() Name        { return NameNewMessage }
func (MessageDeleted) Name() Name    { return NameMessageDeleted }
func (UserTyping) Name() Name        { return NameUserTyping }
func (UserStoppedTyping) Name() Name { return NameUserStoppedTyping }
func (TaskAdded) Name() Name         { return NameTaskAdded }
func (TaskUpdated) Name() Name       { return NameTaskUpdated }
func (TaskDeleted) Name() Name       { return NameTaskDeleted }
func (Error) Name() Name             { return NameError }
func (SendMessage) Name() Name       { return NameSendMessage }
func (DeleteMessage) Name() Name     { return NameDeleteMessage }
func (Typing) Name() Name            { return NameTyping }
func (StopTyping) Name() Name        { return NameStopTyping }

func (e ChatLog) payload() any {
	if e.Messages == nil {
		return []models.ChatMessage{}
	}
	return e.Messages
}
func (e NewMessage) payload() any        { return e.Message }
func (e MessageDeleted) payload() any    { return e.Timestamp }
func (e UserTyping) payload() any        { return e.User }
func (e UserStoppedTyping) payload() any { return e.User }
func (e TaskAdded) payload() any         { return e.Task }
func (e TaskUpdated) payload() any       { return e.Task }
func (e TaskDeleted) payload() any       { return e.Task }
func (e Error) payload() any             { return e }
func (e SendMessage) payload() any       { return e }
func (e DeleteMessage) payload() any     { return e }
func (e Typing) payload() any            { return e }
func (e StopTyping) payload() any        { return e }

// Inbound reports whether clients are allowed to send e.
func Inbound(e Event) bool {
	switch e.(type) {
	case SendMessage, DeleteMessage, Typing, StopTyping:
		return true
	}
	return false
}
