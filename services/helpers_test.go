package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shandle1/CheckDee-sub000/database"
	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/utils"
)

// Task site used across tests: Lumphini Park, Bangkok.
var (
	siteLat = 13.7469
	siteLng = 100.5398

	nearPoint = utils.Location{Latitude: 13.7469, Longitude: 100.5399}
	farPoint  = utils.Location{Latitude: 13.75, Longitude: 100.55}
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ofType(eventType EventType) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memoryStorage) Store(_ context.Context, folder, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	key := folder + "/" + name + ".jpg"
	s.files[key] = data
	return "mem://" + key, nil
}

type fixture struct {
	db        *gorm.DB
	events    *recordingPublisher
	storage   *memoryStorage
	evidence  *EvidenceStore
	lifecycle *SubmissionLifecycle
	reviews   *ReviewGate

	worker   *models.User
	other    *models.User
	reviewer *models.User
	task     *models.Task
}

func newFixture(t *testing.T, policy LifecyclePolicy) *fixture {
	t.Helper()
	db := openTestDB(t)
	f := &fixture{
		db:      db,
		events:  &recordingPublisher{},
		storage: &memoryStorage{},
	}
	f.evidence = NewEvidenceStore(db)
	f.lifecycle = NewSubmissionLifecycle(db, f.evidence, f.storage, f.events, policy)
	f.reviews = NewReviewGate(db, f.events)

	f.worker = createUser(t, db, "worker@example.com", models.RoleWorker)
	f.other = createUser(t, db, "other@example.com", models.RoleWorker)
	f.reviewer = createUser(t, db, "reviewer@example.com", models.RoleReviewer)
	f.task = createTask(t, db, f.reviewer.ID, f.worker.ID)
	return f
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{FullName: email, Email: email, PasswordHash: "x", Role: role, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createTask(t *testing.T, db *gorm.DB, creatorID, workerID uint) *models.Task {
	t.Helper()
	task := &models.Task{
		Title:            "Inspect fountain",
		Latitude:         siteLat,
		Longitude:        siteLng,
		RadiusMeters:     100,
		AssignedWorkerID: &workerID,
		CreatedByID:      creatorID,
		Priority:         models.PriorityMedium,
		Status:           models.TaskStatusAssigned,
		ChecklistItems: []models.ChecklistItem{
			{Position: 1, Text: "Pump running", IsCritical: true},
			{Position: 2, Text: "Basin cleaned"},
		},
		Questions: []models.Question{
			{Position: 1, Text: "Water clear?", Type: models.QuestionYesNo, IsRequired: true},
			{Position: 2, Text: "Condition", Type: models.QuestionSingleChoice, Options: []byte(`["good","poor"]`)},
			{Position: 3, Text: "Flow rate", Type: models.QuestionNumber},
		},
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func (f *fixture) checkIn(t *testing.T) *models.Submission {
	t.Helper()
	sub, err := f.lifecycle.CheckIn(context.Background(), CheckInInput{
		TaskID:   f.task.ID,
		WorkerID: f.worker.ID,
		Point:    nearPoint,
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) submit(t *testing.T) *models.Submission {
	t.Helper()
	sub := f.checkIn(t)
	_, err := f.lifecycle.CheckOut(context.Background(), f.worker.ID, sub.ID, nil, nil)
	require.NoError(t, err)
	return sub
}

func (f *fixture) reloadTask(t *testing.T) *models.Task {
	t.Helper()
	var task models.Task
	require.NoError(t, f.db.First(&task, f.task.ID).Error)
	return &task
}

func (f *fixture) reloadSubmission(t *testing.T, id uint) *models.Submission {
	t.Helper()
	var sub models.Submission
	require.NoError(t, f.db.First(&sub, id).Error)
	return &sub
}

var sentinelByKind = map[ErrorKind]error{
	KindValidation:        ErrValidation,
	KindNotFound:          ErrNotFound,
	KindForbidden:         ErrForbidden,
	KindGeofenceViolation: ErrGeofenceViolation,
	KindInvalidState:      ErrInvalidState,
	KindConflict:          ErrConflict,
}

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.Truef(t, ok, "expected lifecycle error, got %v", err)
	require.Equal(t, kind, e.Kind, e.Error())
	require.ErrorIs(t, err, sentinelByKind[kind])
	return e
}

// fixedClock returns a clock that advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}
