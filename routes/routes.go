package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/shandle1/CheckDee-sub000/config"
	"github.com/shandle1/CheckDee-sub000/middleware"
	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/services"
	"github.com/shandle1/CheckDee-sub000/websocket"
)

// Dependencies are the components the HTTP layer is built from.
type Dependencies struct {
	Config        *config.Config
	DB            *gorm.DB
	Tokens        *services.JWTService
	Tasks         *services.TaskService
	Lifecycle     *services.SubmissionLifecycle
	Reviews       *services.ReviewGate
	Notifications *services.NotificationService
	Hub           *websocket.Hub
	RateLimiter   *middleware.RateLimiter
}

type handler struct {
	Dependencies
}

// NewRouter builds the gin engine with middleware and all API routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewRateLimiter()
	}
	h := &handler{Dependencies: deps}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.InputValidationMiddleware(deps.Config.Uploads.MaxBytes + 1<<20))

	if !deps.Config.Cloudinary.Enabled() {
		router.Static(deps.Config.Uploads.PublicPath, deps.Config.Uploads.Dir)
	}

	router.GET("/health", h.health)

	api := router.Group("/api/v1")
	api.GET("/ws", middleware.WebSocketAuthMiddleware(deps.DB, deps.Tokens), h.serveWebSocket)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(deps.DB, deps.Tokens))
	protected.Use(middleware.AuditLogMiddleware())
	{
		RegisterSubmissionRoutes(protected.Group("/submissions"), h)
		RegisterTaskRoutes(protected.Group("/tasks"), h)
		protected.POST("/push-tokens", h.registerPushToken)
	}

	return router
}

// RegisterSubmissionRoutes registers the submission lifecycle endpoints
func RegisterSubmissionRoutes(rg *gin.RouterGroup, h *handler) {
	checkInLimit := middleware.RateLimitMiddleware(h.RateLimiter, rate.Every(6*time.Second), 10)
	reviewers := middleware.RequireRole(models.RoleReviewer, models.RoleAdmin)

	rg.POST("", checkInLimit, h.checkIn)
	rg.GET("/:id", h.getSubmission)
	rg.PUT("/:id", h.updateSubmission)
	rg.POST("/:id/photos", h.uploadPhoto)
	rg.POST("/:id/review", reviewers, h.reviewSubmission)
	rg.GET("/:id/reviews", reviewers, h.listReviews)
}

// RegisterTaskRoutes registers task endpoints
func RegisterTaskRoutes(rg *gin.RouterGroup, h *handler) {
	rg.POST("", middleware.RequireRole(models.RoleReviewer, models.RoleAdmin), h.createTask)
	rg.GET("/mine", h.myTasks)
	rg.GET("/:id", h.getTask)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (h *handler) health(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"
	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "unavailable"
	}

	connected := 0
	if h.Hub != nil {
		connected = h.Hub.ConnectedCount()
	}
	c.JSON(status, gin.H{
		"status":            dbStatus,
		"connected_clients": connected,
		"time":              time.Now().UTC(),
	})
}
