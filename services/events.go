package services

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCheckedIn EventType = "submission.checked_in"
	EventSubmitted EventType = "submission.submitted"
	EventReviewed  EventType = "submission.reviewed"
	EventStale     EventType = "submission.stale"
)

// Event is an outbound notification produced after a lifecycle transaction
// commits.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	UserID    uint                   `json:"user_id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// EventPublisher hands events to the delivery side. Publish must not block on
// delivery and has no error path: lifecycle operations never fail because a
// notification could not be sent.
type EventPublisher interface {
	Publish(event Event)
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType EventType, userID uint, title, body string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
