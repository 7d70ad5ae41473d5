package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"huddle/internal/models"
)

// handleListTasks returns the whole list.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.mutations.ListTasks(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, "Failed to fetch tasks", err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// handleCreateTask adds a task and notifies every client.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req models.NewTask
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, http.StatusBadRequest, "Failed to create task", err)
		return
	}

	task, err := s.mutations.AddTask(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "Failed to create task", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// handleUpdateTask merges the provided fields, commonly the completed toggle.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var patch models.TaskPatch
	if err := bindJSON(c, &patch); err != nil {
		s.respondError(c, http.StatusBadRequest, "Failed to update task", err)
		return
	}

	task, err := s.mutations.UpdateTask(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "Failed to update task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if _, err := s.mutations.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, http.StatusBadRequest, "Failed to delete task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully!"})
}

// bindJSON decodes the request body. Decode failures are validation errors.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %s", models.ErrValidation, err.Error())
	}
	return nil
}
