package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shandle1/CheckDee-sub000/middleware"
	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/websocket"
)

// registerPushToken handles POST /push-tokens
func (h *handler) registerPushToken(c *gin.Context) {
	var req models.PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	token, err := h.Notifications.RegisterPushToken(c.Request.Context(), c.GetUint("user_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// serveWebSocket handles GET /ws?token=...
func (h *handler) serveWebSocket(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	upgrader := websocket.NewUpgrader(h.Config.Server.AllowedOrigins)
	websocket.ServeWebSocket(h.Hub, upgrader, c.Writer, c.Request, user.ID, string(user.Role))
}
