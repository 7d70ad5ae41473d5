package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNewTask(t *testing.T) {
	require.NoError(t, Validate(NewTask{Task: "buy milk"}))

	err := Validate(NewTask{Task: "   "})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "task is required")

	err = Validate(NewTask{Task: strings.Repeat("x", MaxTextBytes+1)})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "task exceeds")
}

func TestValidateChatMessageReportsEveryField(t *testing.T) {
	err := Validate(NewChatMessage{})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "user is required")
	assert.Contains(t, err.Error(), "text is required")
}

func TestValidateTaskPatch(t *testing.T) {
	done := true
	require.NoError(t, Validate(TaskPatch{Completed: &done}))
	require.NoError(t, Validate(TaskPatch{}))

	blank := ""
	require.ErrorIs(t, Validate(TaskPatch{Task: &blank}), ErrValidation)
}

func TestTaskPatchApply(t *testing.T) {
	done := true
	text := "walk dog"
	base := Task{ID: "1", Task: "buy milk"}

	got := TaskPatch{Completed: &done}.Apply(base)
	assert.Equal(t, Task{ID: "1", Task: "buy milk", Completed: true}, got)

	got = TaskPatch{Task: &text}.Apply(got)
	assert.Equal(t, Task{ID: "1", Task: "walk dog", Completed: true}, got)

	assert.True(t, TaskPatch{}.Empty())
	assert.False(t, TaskPatch{Task: &text}.Empty())
}
