package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/services"
)

// StaleCheckInJob reminds workers whose submissions stayed checked in for too
// long. It never changes submission or task status; each submission is
// reminded once.
type StaleCheckInJob struct {
	db     *gorm.DB
	events services.EventPublisher
	after  time.Duration
	now    func() time.Time
}

func NewStaleCheckInJob(db *gorm.DB, events services.EventPublisher, after time.Duration) *StaleCheckInJob {
	return &StaleCheckInJob{
		db:     db,
		events: events,
		after:  after,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register adds the sweep to the scheduler.
func (j *StaleCheckInJob) Register(s *Scheduler, schedule string) error {
	return s.Add("stale-checkins", schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			log.Printf("❌ Stale check-in sweep failed: %v", err)
		}
	})
}

// Sweep publishes a reminder for every stale submission and returns how many
// were reminded.
func (j *StaleCheckInJob) Sweep(ctx context.Context) (int, error) {
	now := j.now()
	cutoff := now.Add(-j.after)

	var stale []models.Submission
	err := j.db.WithContext(ctx).
		Preload("Task").
		Where("status = ? AND check_in_time <= ? AND reminder_sent_at IS NULL", string(models.SubmissionInProgress), cutoff).
		Order("check_in_time").
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("load stale submissions: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	log.Printf("⏰ Found %d stale check-ins", len(stale))

	reminded := 0
	for _, sub := range stale {
		res := j.db.WithContext(ctx).Model(&models.Submission{}).
			Where("id = ? AND status = ? AND reminder_sent_at IS NULL", sub.ID, string(models.SubmissionInProgress)).
			Update("reminder_sent_at", now)
		if res.Error != nil {
			log.Printf("❌ Failed to mark reminder for submission %d: %v", sub.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		title := "your task"
		if sub.Task != nil {
			title = fmt.Sprintf("%q", sub.Task.Title)
		}
		j.events.Publish(services.NewEvent(services.EventStale, sub.WorkerID,
			"Still on site?",
			fmt.Sprintf("You checked in to %s %s ago and have not checked out yet.", title, now.Sub(sub.CheckInTime).Round(time.Minute)),
			map[string]interface{}{
				"submission_id": sub.ID,
				"task_id":       sub.TaskID,
			}))
		reminded++
	}
	return reminded, nil
}
