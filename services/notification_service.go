package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/websocket"
)

// RealtimeSender delivers a message to a user's live connection.
type RealtimeSender interface {
	SendToUser(userID uint, message *websocket.Message) bool
}

// PushResult reports the tokens the push provider no longer accepts.
type PushResult struct {
	Sent          int
	InvalidTokens []string
}

// Pusher sends mobile push notifications.
type Pusher interface {
	Push(ctx context.Context, tokens []string, title, body string, data map[string]string) (*PushResult, error)
}

// NotificationService turns lifecycle events into stored notifications, live
// websocket messages and mobile pushes.
type NotificationService struct {
	db       *gorm.DB
	realtime RealtimeSender
	pusher   Pusher
}

func NewNotificationService(db *gorm.DB, realtime RealtimeSender, pusher Pusher) *NotificationService {
	return &NotificationService{db: db, realtime: realtime, pusher: pusher}
}

// Deliver stores the notification and fans it out. Only the database write
// is reported as an error; live and push delivery failures are logged.
func (s *NotificationService) Deliver(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}

	notification := models.Notification{
		UserID: event.UserID,
		Title:  event.Title,
		Body:   event.Body,
		Type:   string(event.Type),
		Data:   datatypes.JSON(payload),
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if s.realtime != nil {
		delivered := s.realtime.SendToUser(event.UserID, &websocket.Message{
			Type:      string(event.Type),
			Timestamp: event.CreatedAt,
			Data: map[string]interface{}{
				"notification_id": notification.ID,
				"event_id":        event.ID,
				"title":           event.Title,
				"body":            event.Body,
				"data":            event.Data,
			},
		})
		if delivered {
			log.Printf("✅ %s sent to user %d over websocket", event.Type, event.UserID)
		}
	}

	if s.pusher != nil {
		s.push(ctx, event, notification.ID)
	}
	return nil
}

// RegisterPushToken stores a device token for the user. A token moving to a
// different user is reassigned.
func (s *NotificationService) RegisterPushToken(ctx context.Context, userID uint, req models.PushTokenRequest) (*models.PushToken, error) {
	db := s.db.WithContext(ctx)

	var token models.PushToken
	err := db.Unscoped().Where("token = ?", req.Token).First(&token).Error
	switch {
	case err == nil:
		err = db.Unscoped().Model(&token).Updates(map[string]interface{}{
			"user_id":    userID,
			"platform":   req.Platform,
			"device_id":  req.DeviceID,
			"active":     true,
			"deleted_at": nil,
		}).Error
		if err != nil {
			return nil, fmt.Errorf("update push token: %w", err)
		}
	case isRecordNotFound(err):
		token = models.PushToken{UserID: userID, Token: req.Token, Platform: req.Platform, DeviceID: req.DeviceID, Active: true}
		if err := db.Create(&token).Error; err != nil {
			return nil, fmt.Errorf("create push token: %w", err)
		}
	default:
		return nil, fmt.Errorf("load push token: %w", err)
	}

	if err := db.First(&token, token.ID).Error; err != nil {
		return nil, fmt.Errorf("reload push token: %w", err)
	}
	return &token, nil
}

func (s *NotificationService) push(ctx context.Context, event Event, notificationID uint) {
	var tokens []string
	if err := s.db.WithContext(ctx).Model(&models.PushToken{}).
		Where("user_id = ? AND active = ?", event.UserID, true).
		Pluck("token", &tokens).Error; err != nil {
		log.Printf("❌ Failed to load push tokens for user %d: %v", event.UserID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	data := map[string]string{
		"type":            string(event.Type),
		"event_id":        event.ID,
		"notification_id": fmt.Sprint(notificationID),
	}
	for k, v := range event.Data {
		data[k] = fmt.Sprint(v)
	}

	result, err := s.pusher.Push(ctx, tokens, event.Title, event.Body, data)
	if err != nil {
		log.Printf("❌ Push delivery failed for user %d: %v", event.UserID, err)
		return
	}
	log.Printf("📱 Push sent to %d/%d devices of user %d", result.Sent, len(tokens), event.UserID)

	if len(result.InvalidTokens) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.PushToken{}).
			Where("token IN ?", result.InvalidTokens).
			Update("active", false).Error; err != nil {
			log.Printf("⚠️ Failed to deactivate stale push tokens: %v", err)
		}
	}
}

// FCMPusher sends pushes through Firebase Cloud Messaging.
type FCMPusher struct {
	client *messaging.Client
}

func NewFCMPusher(ctx context.Context, credentialsFile string) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

func (p *FCMPusher) Push(ctx context.Context, tokens []string, title, body string, data map[string]string) (*PushResult, error) {
	resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	})
	if err != nil {
		return nil, err
	}

	result := &PushResult{Sent: resp.SuccessCount}
	for i, r := range resp.Responses {
		if r.Error != nil && messaging.IsRegistrationTokenNotRegistered(r.Error) {
			result.InvalidTokens = append(result.InvalidTokens, tokens[i])
		}
	}
	return result, nil
}

// Dispatcher decouples event producers from delivery. Publish never blocks:
// when the queue is full the event is dropped and logged.
type Dispatcher struct {
	queue   chan Event
	deliver func(context.Context, Event) error
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

func NewDispatcher(size int, deliver func(context.Context, Event) error) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	return &Dispatcher{
		queue:   make(chan Event, size),
		deliver: deliver,
		timeout: 15 * time.Second,
	}
}

func (d *Dispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Printf("⚠️ Dispatcher stopped, dropping %s for user %d", event.Type, event.UserID)
		return
	}

	select {
	case d.queue <- event:
	default:
		log.Printf("⚠️ Notification queue full, dropping %s for user %d", event.Type, event.UserID)
	}
}

// Start runs the delivery worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for event := range d.queue {
			d.process(event)
		}
	}()
	log.Println("📨 Notification dispatcher started")
}

// Stop closes the queue and waits until queued events are delivered.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
		log.Println("📨 Notification dispatcher stopped")
	})
}

func (d *Dispatcher) process(event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic delivering %s: %v", event.Type, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.deliver(ctx, event); err != nil {
		log.Printf("❌ Failed to deliver %s to user %d: %v", event.Type, event.UserID, err)
	}
}
