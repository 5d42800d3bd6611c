package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shandle1/CheckDee-sub000/middleware"
	"github.com/shandle1/CheckDee-sub000/models"
)

// createTask handles POST /tasks
func (h *handler) createTask(c *gin.Context) {
	var req models.TaskCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	user, _ := middleware.CurrentUser(c)

	task, err := h.Tasks.Create(c.Request.Context(), user, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// getTask handles GET /tasks/:id
func (h *handler) getTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)

	task, err := h.Tasks.Get(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// myTasks handles GET /tasks/mine
func (h *handler) myTasks(c *gin.Context) {
	tasks, err := h.Tasks.ListAssigned(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
