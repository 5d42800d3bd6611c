package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandle1/CheckDee-sub000/database"
	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/services"
)

type capture struct {
	mu     sync.Mutex
	events []services.Event
}

func (c *capture) Publish(e services.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestStaleCheckInSweepRemindsOnce(t *testing.T) {
	db, err := database.OpenSQLite("file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared")
	require.NoError(t, err)

	worker := models.User{FullName: "W", Email: "w@example.com", PasswordHash: "x", Role: models.RoleWorker, IsActive: true}
	reviewer := models.User{FullName: "R", Email: "r@example.com", PasswordHash: "x", Role: models.RoleReviewer, IsActive: true}
	require.NoError(t, db.Create(&worker).Error)
	require.NoError(t, db.Create(&reviewer).Error)

	now := time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)
	newTask := func(title string) models.Task {
		task := models.Task{Title: title, Latitude: 13.7469, Longitude: 100.5398, RadiusMeters: 100, AssignedWorkerID: &worker.ID, CreatedByID: reviewer.ID}
		require.NoError(t, db.Create(&task).Error)
		return task
	}
	staleTask := newTask("Stale")
	freshTask := newTask("Fresh")
	doneTask := newTask("Done")

	submitted := now.Add(-5 * time.Hour)
	subs := []models.Submission{
		{TaskID: staleTask.ID, WorkerID: worker.ID, Version: 1, Status: models.SubmissionInProgress, CheckInTime: now.Add(-6 * time.Hour)},
		{TaskID: freshTask.ID, WorkerID: worker.ID, Version: 1, Status: models.SubmissionInProgress, CheckInTime: now.Add(-time.Hour)},
		{TaskID: doneTask.ID, WorkerID: worker.ID, Version: 1, Status: models.SubmissionPending, CheckInTime: now.Add(-8 * time.Hour), SubmittedAt: &submitted},
	}
	for i := range subs {
		require.NoError(t, db.Create(&subs[i]).Error)
	}

	events := &capture{}
	job := NewStaleCheckInJob(db, events, 4*time.Hour)
	job.now = func() time.Time { return now }

	reminded, err := job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reminded)

	require.Len(t, events.events, 1)
	e := events.events[0]
	assert.Equal(t, services.EventStale, e.Type)
	assert.Equal(t, worker.ID, e.UserID)
	assert.Equal(t, subs[0].ID, e.Data["submission_id"])
	assert.Contains(t, e.Body, `"Stale"`)

	reminded, err = job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reminded)

	var stale models.Submission
	require.NoError(t, db.First(&stale, subs[0].ID).Error)
	assert.Equal(t, models.SubmissionInProgress, stale.Status)
	assert.NotNil(t, stale.ReminderSentAt)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.Add("broken", "not a schedule", func() {}))
	assert.NoError(t, s.Add("every-minute", "0 * * * * *", func() {}))
}
