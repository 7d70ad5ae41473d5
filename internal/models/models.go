package models

// Task is a single entry of the shared to-do list.
type Task struct {
	ID        string `json:"id"`
	Task      string `json:"task"`
	Completed bool   `json:"completed"`
}

// TaskPatch carries the fields of an update request. Nil fields are left untouched.
type TaskPatch struct {
	Task      *string `json:"task,omitempty" validate:"omitempty,notblank,maxbytes"`
	Completed *bool   `json:"completed,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Task == nil && p.Completed == nil
}

// Apply merges the patch into t and returns the result.
func (p TaskPatch) Apply(t Task) Task {
	if p.Task != nil {
		t.Task = *p.Task
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// ChatMessage is one line of the group chat. Timestamp doubles as the
// delete key on the wire; ID is metadata assigned alongside it.
type ChatMessage struct {
	ID        string `json:"id" bson:"id"`
	User      string `json:"user" bson:"user"`
	Text      string `json:"text" bson:"text"`
	Timestamp string `json:"timestamp" bson:"timestamp"`
}

// NewTask is the body of a create request.
type NewTask struct {
	Task string `json:"task" validate:"notblank,maxbytes"`
}

// NewChatMessage is the payload a client sends to post a message.
type NewChatMessage struct {
	User string `json:"user" validate:"notblank,maxbytes"`
	Text string `json:"text" validate:"notblank,maxbytes"`
}

// TypingSignal names the user behind a typing or stopTyping event.
type TypingSignal struct {
	User string `json:"user" validate:"notblank,maxbytes"`
}
