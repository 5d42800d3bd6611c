package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/shandle1/CheckDee-sub000/models"
)

// ReviewGate applies reviewer decisions to submitted work.
type ReviewGate struct {
	db     *gorm.DB
	events EventPublisher
	now    func() time.Time
}

func NewReviewGate(db *gorm.DB, events EventPublisher) *ReviewGate {
	if events == nil {
		events = NopPublisher{}
	}
	return &ReviewGate{db: db, events: events, now: func() time.Time { return time.Now().UTC() }}
}

var reviewTitles = map[models.SubmissionStatus]string{
	models.SubmissionApproved:      "Submission approved",
	models.SubmissionRejected:      "Submission rejected",
	models.SubmissionInfoRequested: "More information requested",
}

// Decide records a review and moves the submission to the decided status.
// Approval and rejection also settle the task; an info request leaves the
// task status as it is. Reviewed submissions may be reviewed again.
func (g *ReviewGate) Decide(ctx context.Context, reviewer *models.User, submissionID uint, action models.SubmissionStatus, notes string) (*models.Review, error) {
	if !action.IsReviewDecision() {
		return nil, validationError("Unknown review action", map[string]string{
			"action": "must be one of approved, rejected, info_requested",
		})
	}
	if reviewer == nil || !reviewer.IsReviewer() {
		return nil, forbidden("Only reviewers can review submissions")
	}

	var (
		review     models.Review
		submission *models.Submission
	)
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, task, err := lockSubmission(tx, submissionID)
		if err != nil {
			return err
		}
		submission = sub

		if sub.SubmittedAt == nil || !sub.Status.CanTransitionTo(action) {
			return invalidState("Submission has not been checked out yet", string(sub.Status))
		}

		var newer int64
		if err := tx.Model(&models.Submission{}).
			Where("task_id = ? AND worker_id = ? AND version > ?", sub.TaskID, sub.WorkerID, sub.Version).
			Count(&newer).Error; err != nil {
			return fmt.Errorf("count newer submissions: %w", err)
		}
		if newer > 0 {
			return invalidState("A newer submission exists for this task", string(sub.Status))
		}

		now := g.now()
		review = models.Review{
			SubmissionID: sub.ID,
			ReviewerID:   reviewer.ID,
			Action:       action,
			Notes:        notes,
			CreatedAt:    now,
		}
		if err := tx.Create(&review).Error; err != nil {
			return fmt.Errorf("create review: %w", err)
		}

		if err := tx.Model(&models.Submission{}).Where("id = ?", sub.ID).
			Updates(map[string]interface{}{"status": string(action), "updated_at": now}).Error; err != nil {
			return fmt.Errorf("update submission status: %w", err)
		}
		sub.Status = action

		switch action {
		case models.SubmissionApproved:
			return setTaskStatus(tx, task.ID, models.TaskStatusApproved, now)
		case models.SubmissionRejected:
			return setTaskStatus(tx, task.ID, models.TaskStatusRejected, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📝 Submission %d reviewed by %d: %s", submission.ID, reviewer.ID, action)

	g.events.Publish(NewEvent(EventReviewed, submission.WorkerID,
		reviewTitles[action],
		reviewBody(action, notes),
		map[string]interface{}{
			"submission_id": submission.ID,
			"task_id":       submission.TaskID,
			"review_id":     review.ID,
			"action":        string(action),
			"notes":         notes,
		}))

	return &review, nil
}

// History returns the review log of a submission, oldest first.
func (g *ReviewGate) History(ctx context.Context, submissionID uint) ([]models.Review, error) {
	db := g.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Submission{}).Where("id = ?", submissionID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}
	if count == 0 {
		return nil, notFound("Submission not found")
	}

	reviews := []models.Review{}
	if err := db.Preload("Reviewer").Where("submission_id = ?", submissionID).
		Order("created_at, id").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	return reviews, nil
}

func reviewBody(action models.SubmissionStatus, notes string) string {
	var body string
	switch action {
	case models.SubmissionApproved:
		body = "Your submission has been approved."
	case models.SubmissionRejected:
		body = "Your submission has been rejected."
	default:
		body = "The reviewer needs more information. Please check in again to resubmit."
	}
	if notes != "" {
		body += " " + notes
	}
	return body
}
