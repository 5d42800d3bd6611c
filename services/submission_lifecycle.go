package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/utils"
)

// LifecyclePolicy holds the configurable rules of the submission lifecycle.
type LifecyclePolicy struct {
	// EnforcePhotoCounts rejects check-out while the task's required before
	// and after photo counts are not met.
	EnforcePhotoCounts bool
	// MaxAccuracyMeters rejects check-ins with a worse reported GPS accuracy.
	// Zero disables the check.
	MaxAccuracyMeters float64
	// MaxPhotoDimension bounds the longest side of stored photos.
	MaxPhotoDimension int
}

// SubmissionLifecycle drives a submission from check-in through evidence
// capture to check-out and keeps the task status in step with it.
type SubmissionLifecycle struct {
	db       *gorm.DB
	evidence *EvidenceStore
	photos   PhotoStorage
	events   EventPublisher
	policy   LifecyclePolicy
	now      func() time.Time
}

func NewSubmissionLifecycle(db *gorm.DB, evidence *EvidenceStore, photos PhotoStorage, events EventPublisher, policy LifecyclePolicy) *SubmissionLifecycle {
	if events == nil {
		events = NopPublisher{}
	}
	return &SubmissionLifecycle{
		db:       db,
		evidence: evidence,
		photos:   photos,
		events:   events,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CheckInInput struct {
	TaskID   uint
	WorkerID uint
	Point    utils.Location
	Accuracy *float64
}

// UpdateInput is the combined payload of PUT /submissions/:id. Everything in
// it is applied in one transaction.
type UpdateInput struct {
	WorkerNotes    *string
	ChecklistItems []models.ChecklistCompletionInput
	Answers        []models.AnswerInput
	CheckOut       bool
	CheckOutPoint  *utils.Location
}

type PhotoInput struct {
	Type     models.PhotoType
	Caption  string
	Filename string
	File     io.Reader
}

// SubmissionView is a submission with its evidence and review log loaded.
type SubmissionView struct {
	*models.Submission
	PhotoCounts            models.PhotoCounts `json:"photo_counts"`
	MissingRequiredAnswers []uint             `json:"missing_required_answers"`
}

// CheckIn opens a new submission for the task. The worker must be assigned to
// the task, stand inside its geofence and have no other active submission for
// it. A rejected check-in writes nothing.
func (l *SubmissionLifecycle) CheckIn(ctx context.Context, in CheckInInput) (*models.Submission, error) {
	if !utils.IsLocationValid(in.Point.Latitude, in.Point.Longitude) {
		return nil, validationError("Invalid check-in coordinates", map[string]string{
			"check_in_latitude":  "must be between -90 and 90",
			"check_in_longitude": "must be between -180 and 180",
		})
	}
	if in.Accuracy != nil {
		if *in.Accuracy < 0 {
			return nil, validationError("Invalid check-in accuracy", map[string]string{"check_in_accuracy": "must not be negative"})
		}
		if l.policy.MaxAccuracyMeters > 0 && *in.Accuracy > l.policy.MaxAccuracyMeters {
			return nil, validationError("Location accuracy is too low", map[string]string{
				"check_in_accuracy": fmt.Sprintf("must be at most %.0f meters", l.policy.MaxAccuracyMeters),
			})
		}
	}

	var (
		task       models.Task
		submission models.Submission
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, in.TaskID).Error; err != nil {
			if isRecordNotFound(err) {
				return notFound("Task not found")
			}
			return fmt.Errorf("load task: %w", err)
		}

		if !task.IsAssignedTo(in.WorkerID) {
			return forbidden("You are not assigned to this task")
		}

		distance := utils.DistanceToTask(&task, in.Point)
		if !utils.IsWithinGeofence(&task, in.Point) {
			return geofenceViolation(distance, task.RadiusMeters)
		}

		var active models.Submission
		err := tx.Where("task_id = ? AND worker_id = ? AND status IN ?", task.ID, in.WorkerID, activeStatuses()).
			First(&active).Error
		if err == nil {
			return conflict("You have already checked in to this task", string(active.Status))
		}
		if !isRecordNotFound(err) {
			return fmt.Errorf("load active submission: %w", err)
		}

		// Only the worker's latest submission decides whether the task is
		// closed to them. A task re-reviewed to info_requested stays approved
		// but is open again.
		var previous models.Submission
		err = tx.Where("task_id = ? AND worker_id = ?", task.ID, in.WorkerID).Order("version DESC").First(&previous).Error
		hasPrevious := err == nil
		if err != nil && !isRecordNotFound(err) {
			return fmt.Errorf("load previous submission: %w", err)
		}
		if hasPrevious && previous.Status == models.SubmissionApproved {
			return invalidState("Task has already been approved", string(previous.Status))
		}

		now := l.now()
		submission = models.Submission{
			TaskID:           task.ID,
			WorkerID:         in.WorkerID,
			Version:          1,
			Status:           models.SubmissionInProgress,
			CheckInTime:      now,
			CheckInLatitude:  in.Point.Latitude,
			CheckInLongitude: in.Point.Longitude,
			CheckInAccuracy:  in.Accuracy,
			CheckInDistance:  distance,
		}
		if hasPrevious {
			submission.Version = previous.Version + 1
			submission.PreviousSubmissionID = &previous.ID
		}


		if err := tx.Create(&submission).Error; err != nil {
			if isDuplicateKey(err) {
				return conflict("You have already checked in to this task", string(models.SubmissionInProgress))
			}
			return fmt.Errorf("create submission: %w", err)
		}

		return setTaskStatus(tx, task.ID, models.TaskStatusInProgress, now)
	})
	if err != nil {
		if e, ok := AsError(err); ok && e.Kind == KindGeofenceViolation {
			log.Printf("🚫 Check-in rejected for worker %d on task %d: %.1fm away, radius %.1fm", in.WorkerID, in.TaskID, e.Distance, e.AllowedRadius)
		}
		return nil, err
	}

	log.Printf("✅ Worker %d checked in to task %d (submission %d, v%d, %.1fm from site)",
		in.WorkerID, task.ID, submission.ID, submission.Version, submission.CheckInDistance)

	l.events.Publish(NewEvent(EventCheckedIn, task.CreatedByID,
		"Worker checked in",
		fmt.Sprintf("A worker checked in to %q", task.Title),
		map[string]interface{}{
			"submission_id": submission.ID,
			"task_id":       task.ID,
			"worker_id":     in.WorkerID,
			"distance":      submission.CheckInDistance,
		}))

	return &submission, nil
}

// RecordEvidence upserts checklist completions and answers on a submission
// that has not been checked out.
func (l *SubmissionLifecycle) RecordEvidence(ctx context.Context, workerID, submissionID uint, checklist []models.ChecklistCompletionInput, answers []models.AnswerInput) (*SubmissionView, error) {
	return l.Update(ctx, workerID, submissionID, UpdateInput{ChecklistItems: checklist, Answers: answers})
}

// CheckOut closes the capture phase and hands the submission to review.
func (l *SubmissionLifecycle) CheckOut(ctx context.Context, workerID, submissionID uint, notes *string, point *utils.Location) (*SubmissionView, error) {
	return l.Update(ctx, workerID, submissionID, UpdateInput{WorkerNotes: notes, CheckOut: true, CheckOutPoint: point})
}

// Update applies notes, evidence and an optional check-out atomically. Any
// rejected item aborts the whole update.
func (l *SubmissionLifecycle) Update(ctx context.Context, workerID, submissionID uint, in UpdateInput) (*SubmissionView, error) {
	if in.CheckOutPoint != nil && !utils.IsLocationValid(in.CheckOutPoint.Latitude, in.CheckOutPoint.Longitude) {
		return nil, validationError("Invalid check-out coordinates", map[string]string{
			"check_out_latitude":  "must be between -90 and 90",
			"check_out_longitude": "must be between -180 and 180",
		})
	}

	var task *models.Task
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, t, err := lockSubmission(tx, submissionID)
		if err != nil {
			return err
		}
		task = t

		if submission.WorkerID != workerID {
			return forbidden("This submission belongs to another worker")
		}
		if submission.Status != models.SubmissionInProgress {
			return invalidState("Submission has already been checked out", string(submission.Status))
		}

		evidence := l.evidence.WithTx(tx)
		for _, item := range in.ChecklistItems {
			if _, err := evidence.UpsertChecklist(ctx, submission, item); err != nil {
				return err
			}
		}
		for _, answer := range in.Answers {
			if _, err := evidence.UpsertAnswer(ctx, submission, answer); err != nil {
				return err
			}
		}

		now := l.now()
		updates := map[string]interface{}{"updated_at": now}
		if in.WorkerNotes != nil {
			updates["worker_notes"] = *in.WorkerNotes
		}

		if in.CheckOut {
			if !submission.Status.CanTransitionTo(models.SubmissionPending) {
				return invalidState("Submission cannot be checked out", string(submission.Status))
			}
			if l.policy.EnforcePhotoCounts {
				counts, err := evidence.PhotoCounts(ctx, submission.ID)
				if err != nil {
					return err
				}
				if fields := missingPhotos(task, counts); len(fields) > 0 {
					return validationError("Required photos are missing", fields)
				}
			}

			updates["status"] = string(models.SubmissionPending)
			updates["check_out_time"] = now
			updates["submitted_at"] = now
			if in.CheckOutPoint != nil {
				updates["check_out_latitude"] = in.CheckOutPoint.Latitude
				updates["check_out_longitude"] = in.CheckOutPoint.Longitude
			}
		}

		if err := tx.Model(&models.Submission{}).Where("id = ?", submission.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update submission: %w", err)
		}

		if in.CheckOut {
			return setTaskStatus(tx, task.ID, models.TaskStatusCompleted, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := l.loadView(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if in.CheckOut {
		log.Printf("📤 Submission %d checked out by worker %d for task %d", submissionID, workerID, task.ID)
		l.events.Publish(NewEvent(EventSubmitted, task.CreatedByID,
			"Submission ready for review",
			fmt.Sprintf("%q has been submitted for review", task.Title),
			map[string]interface{}{
				"submission_id": submissionID,
				"task_id":       task.ID,
				"worker_id":     workerID,
			}))
	}

	return view, nil
}

// AttachPhoto stores an image and appends it to the submission's evidence.
// The upload happens outside any transaction; the photo row is written only
// if the submission is still open afterwards.
func (l *SubmissionLifecycle) AttachPhoto(ctx context.Context, workerID, submissionID uint, in PhotoInput) (*models.Photo, error) {
	if in.Type != models.PhotoBefore && in.Type != models.PhotoAfter {
		return nil, validationError("Invalid photo type", map[string]string{"photo_type": "must be before or after"})
	}
	if l.photos == nil {
		return nil, fmt.Errorf("photo storage is not configured")
	}

	var submission models.Submission
	if err := l.db.WithContext(ctx).First(&submission, submissionID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("Submission not found")
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}
	if submission.WorkerID != workerID {
		return nil, forbidden("This submission belongs to another worker")
	}
	if submission.Status != models.SubmissionInProgress {
		return nil, invalidState("Submission has already been checked out", string(submission.Status))
	}

	prepared, err := PreparePhoto(in.File, l.policy.MaxPhotoDimension)
	if err != nil {
		return nil, validationError("Invalid image file", map[string]string{"photo": err.Error()})
	}

	folder := fmt.Sprintf("submission_%d", submission.ID)
	name := uuid.NewString()
	url, err := l.photos.Store(ctx, folder, name, prepared.Data)
	if err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	metadata, err := json.Marshal(prepared.Metadata(in.Filename))
	if err != nil {
		return nil, fmt.Errorf("encode photo metadata: %w", err)
	}

	photo := &models.Photo{
		SubmissionID: submission.ID,
		URL:          url,
		Type:         in.Type,
		Caption:      in.Caption,
		Metadata:     datatypes.JSON(metadata),
	}
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, _, err := lockSubmission(tx, submission.ID)
		if err != nil {
			return err
		}
		if locked.Status != models.SubmissionInProgress {
			return invalidState("Submission has already been checked out", string(locked.Status))
		}
		return l.evidence.WithTx(tx).AddPhoto(ctx, photo)
	})
	if err != nil {
		log.Printf("⚠️ Photo %s uploaded for submission %d but not recorded: %v", url, submission.ID, err)
		return nil, err
	}

	log.Printf("📸 %s photo %d added to submission %d", photo.Type, photo.Position, submission.ID)
	return photo, nil
}

// Get returns a submission to its worker or to a reviewer.
func (l *SubmissionLifecycle) Get(ctx context.Context, viewer *models.User, submissionID uint) (*SubmissionView, error) {
	view, err := l.loadView(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if view.WorkerID != viewer.ID && !viewer.IsReviewer() {
		return nil, forbidden("You cannot view this submission")
	}
	return view, nil
}

func (l *SubmissionLifecycle) loadView(ctx context.Context, submissionID uint) (*SubmissionView, error) {
	db := l.db.WithContext(ctx)

	var submission models.Submission
	err := db.Preload("Reviews", orderBy("created_at, id")).First(&submission, submissionID).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("Submission not found")
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}

	store := l.evidence.WithTx(db)
	evidence, err := store.Evidence(ctx, submission.ID)
	if err != nil {
		return nil, err
	}
	submission.ChecklistCompletions = evidence.ChecklistCompletions
	submission.Answers = evidence.Answers
	submission.Photos = evidence.Photos

	view := &SubmissionView{Submission: &submission, MissingRequiredAnswers: []uint{}}
	for _, p := range submission.Photos {
		switch p.Type {
		case models.PhotoBefore:
			view.PhotoCounts.Before++
		case models.PhotoAfter:
			view.PhotoCounts.After++
		}
	}

	missing, err := store.MissingRequiredAnswers(ctx, &submission)
	if err != nil {
		return nil, err
	}
	if missing != nil {
		view.MissingRequiredAnswers = missing
	}
	return view, nil
}

// lockSubmission locks the submission's task and then the submission itself,
// always in that order.
func lockSubmission(tx *gorm.DB, submissionID uint) (*models.Submission, *models.Task, error) {
	var ref models.Submission
	if err := tx.Select("id", "task_id").First(&ref, submissionID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, nil, notFound("Submission not found")
		}
		return nil, nil, fmt.Errorf("load submission: %w", err)
	}

	var task models.Task
	if err := tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, ref.TaskID).Error; err != nil {
		return nil, nil, fmt.Errorf("lock task %d: %w", ref.TaskID, err)
	}

	var submission models.Submission
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&submission, submissionID).Error; err != nil {
		return nil, nil, fmt.Errorf("lock submission: %w", err)
	}
	return &submission, &task, nil
}

func setTaskStatus(tx *gorm.DB, taskID uint, status models.TaskStatus, now time.Time) error {
	err := tx.Unscoped().Model(&models.Task{}).Where("id = ?", taskID).
		Updates(map[string]interface{}{"status": string(status), "updated_at": now}).Error
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

func missingPhotos(task *models.Task, counts models.PhotoCounts) map[string]string {
	fields := map[string]string{}
	if counts.Before < task.RequiredPhotosBefore {
		fields["photos_before"] = fmt.Sprintf("need %d, have %d", task.RequiredPhotosBefore, counts.Before)
	}
	if counts.After < task.RequiredPhotosAfter {
		fields["photos_after"] = fmt.Sprintf("need %d, have %d", task.RequiredPhotosAfter, counts.After)
	}
	return fields
}

func activeStatuses() []string {
	out := make([]string, 0, len(models.ActiveSubmissionStatuses))
	for _, s := range models.ActiveSubmissionStatuses {
		out = append(out, string(s))
	}
	return out
}

func orderBy(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Order(column) }
}
