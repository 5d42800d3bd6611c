package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/shandle1/CheckDee-sub000/config"
	"github.com/shandle1/CheckDee-sub000/database"
	"github.com/shandle1/CheckDee-sub000/jobs"
	"github.com/shandle1/CheckDee-sub000/middleware"
	"github.com/shandle1/CheckDee-sub000/routes"
	"github.com/shandle1/CheckDee-sub000/services"
	ws "github.com/shandle1/CheckDee-sub000/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}

	// Real-time hub
	hub := ws.NewHub()
	go hub.Run()
	log.Println("🔌 WebSocket hub started")

	// Push delivery is optional
	var pusher services.Pusher
	if cfg.Push.FirebaseCredentialsFile != "" {
		fcm, err := services.NewFCMPusher(context.Background(), cfg.Push.FirebaseCredentialsFile)
		if err != nil {
			log.Printf("⚠️ Firebase disabled: %v", err)
		} else {
			pusher = fcm
			log.Println("📱 Firebase push notifications enabled")
		}
	}

	notifications := services.NewNotificationService(db, hub, pusher)
	dispatcher := services.NewDispatcher(512, notifications.Deliver)
	dispatcher.Start()

	var storage services.PhotoStorage
	if cfg.Cloudinary.Enabled() {
		cld, err := services.NewCloudinaryStorage(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
		if err != nil {
			log.Fatal("Failed to initialize Cloudinary: ", err)
		}
		storage = cld
		log.Printf("☁️ Photos are stored in Cloudinary folder %q", cfg.Cloudinary.Folder)
	} else {
		storage = services.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.PublicPath)
		log.Printf("📁 Cloudinary not configured, photos are stored in %s", cfg.Uploads.Dir)
	}

	evidence := services.NewEvidenceStore(db)
	lifecycle := services.NewSubmissionLifecycle(db, evidence, storage, dispatcher, services.LifecyclePolicy{
		EnforcePhotoCounts: cfg.Lifecycle.EnforcePhotoCounts,
		MaxAccuracyMeters:  cfg.Lifecycle.MaxAccuracyMeters,
		MaxPhotoDimension:  cfg.Uploads.MaxDimension,
	})
	reviews := services.NewReviewGate(db, dispatcher)
	tasks := services.NewTaskService(db, cfg.Lifecycle.MinRadiusMeters, cfg.Lifecycle.MaxRadiusMeters)
	limiter := middleware.NewRateLimiter()

	// Background jobs
	scheduler := jobs.NewScheduler()
	stale := jobs.NewStaleCheckInJob(db, dispatcher, time.Duration(cfg.Jobs.StaleCheckInAfterHours)*time.Hour)
	if err := stale.Register(scheduler, cfg.Jobs.StaleCheckInSchedule); err != nil {
		log.Fatal(err)
	}
	if err := scheduler.Add("rate-limiter-cleanup", "0 */10 * * * *", func() {
		if removed := limiter.Cleanup(time.Hour); removed > 0 {
			log.Printf("🧹 Removed %d idle rate limiters", removed)
		}
	}); err != nil {
		log.Fatal(err)
	}
	scheduler.Start()

	router := routes.NewRouter(routes.Dependencies{
		Config:        cfg,
		DB:            db,
		Tokens:        services.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours),
		Tasks:         tasks,
		Lifecycle:     lifecycle,
		Reviews:       reviews,
		Notifications: notifications,
		Hub:           hub,
		RateLimiter:   limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	scheduler.Stop()
	dispatcher.Stop()
	hub.Stop()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("✅ Server exited")
}
