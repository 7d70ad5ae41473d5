package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"huddle/internal/models"
)

// ErrUnknownEvent is returned by Decode for names outside the event set.
var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the JSON frame carrying one event.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode renders e as a wire frame.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e.payload())
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Name(), err)
	}
	frame, err := json.Marshal(Envelope{Event: e.Name(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", e.Name(), err)
	}
	return frame, nil
}

// Decode parses a wire frame into its typed event.
func Decode(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch env.Event {
	case NameChatLog:
		var msgs []models.ChatMessage
		err = unmarshalData(env, &msgs)
		e = ChatLog{Messages: msgs}
	case NameNewMessage:
		var p models.ChatMessage
		err = unmarshalData(env, &p)
		e = NewMessage{Message: p}
	case NameMessageDeleted:
		var ts string
		err = unmarshalData(env, &ts)
		e = MessageDeleted{Timestamp: ts}
	case NameUserTyping:
		var user string
		err = unmarshalData(env, &user)
		e = UserTyping{User: user}
	case NameUserStoppedTyping:
		var user string
		err = unmarshalData(env, &user)
		e = UserStoppedTyping{User: user}
	case NameTaskAdded:
		var t models.Task
		err = unmarshalData(env, &t)
		e = TaskAdded{Task: t}
	case NameTaskUpdated:
		var t models.Task
		err = unmarshalData(env, &t)
		e = TaskUpdated{Task: t}
	case NameTaskDeleted:
		var t models.Task
		err = unmarshalData(env, &t)
		e = TaskDeleted{Task: t}
	case NameError:
		var p Error
		err = unmarshalData(env, &p)
		e = p
	case NameSendMessage:
		var p SendMessage
		err = unmarshalData(env, &p)
		e = p
	case NameDeleteMessage:
		var p DeleteMessage
		err = unmarshalData(env, &p)
		e = p
	case NameTyping:
		var p Typing
		err = unmarshalData(env, &p)
		e = p
	case NameStopTyping:
		var p StopTyping
		err = unmarshalData(env, &p)
		e = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("decode %s: missing data", env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return nil
}
