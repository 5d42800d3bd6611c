package models

import (
	"time"
)

// SubmissionStatus is the explicit lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionInProgress    SubmissionStatus = "in_progress"
	SubmissionPending       SubmissionStatus = "pending"
	SubmissionApproved      SubmissionStatus = "approved"
	SubmissionRejected      SubmissionStatus = "rejected"
	SubmissionInfoRequested SubmissionStatus = "info_requested"
)

// ActiveSubmissionStatuses are the statuses without a review decision. At most
// one submission per (task, worker) may hold one of them.
var ActiveSubmissionStatuses = []SubmissionStatus{SubmissionInProgress, SubmissionPending}

// IsActive reports whether the submission has not yet received a review decision.
func (s SubmissionStatus) IsActive() bool {
	return s == SubmissionInProgress || s == SubmissionPending
}

// IsReviewDecision reports whether s is a value a reviewer may apply.
func (s SubmissionStatus) IsReviewDecision() bool {
	switch s {
	case SubmissionApproved, SubmissionRejected, SubmissionInfoRequested:
		return true
	default:
		return false
	}
}

// CanTransitionTo validates a single lifecycle step.
//
// Reviewed submissions may be reviewed again; every decision is appended to the
// review log and the latest one wins.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	switch s {
	case SubmissionInProgress:
		return next == SubmissionInProgress || next == SubmissionPending
	case SubmissionPending, SubmissionApproved, SubmissionRejected, SubmissionInfoRequested:
		return next.IsReviewDecision()
	default:
		return false
	}
}

// Submission is one worker's visit to a task: check-in, captured evidence and
// check-out. Later visits after a rejection or an info request create a new
// version linked to the previous one.
type Submission struct {
	ID                   uint             `json:"id" gorm:"primaryKey"`
	TaskID               uint             `json:"task_id" gorm:"not null;index"`
	Task                 *Task            `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	WorkerID             uint             `json:"worker_id" gorm:"not null;index"`
	Version              int              `json:"version" gorm:"not null;default:1"`
	PreviousSubmissionID *uint            `json:"previous_submission_id"`
	Status               SubmissionStatus `json:"status" gorm:"type:varchar(20);not null;default:'in_progress';index"`
	CheckInTime          time.Time        `json:"check_in_time" gorm:"not null"`
	CheckInLatitude      float64          `json:"check_in_latitude" gorm:"not null"`
	CheckInLongitude     float64          `json:"check_in_longitude" gorm:"not null"`
	CheckInAccuracy      *float64         `json:"check_in_accuracy"`
	CheckInDistance      float64          `json:"check_in_distance"`
	CheckOutTime         *time.Time       `json:"check_out_time"`
	CheckOutLatitude     *float64         `json:"check_out_latitude"`
	CheckOutLongitude    *float64         `json:"check_out_longitude"`
	WorkerNotes          string           `json:"worker_notes" gorm:"type:text"`
	SubmittedAt          *time.Time       `json:"submitted_at"`
	ReminderSentAt       *time.Time       `json:"-"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`

	ChecklistCompletions []ChecklistCompletion `json:"checklist_completions,omitempty" gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
	Answers              []QuestionAnswer      `json:"answers,omitempty" gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
	Photos               []Photo               `json:"photos,omitempty" gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
	Reviews              []Review              `json:"reviews,omitempty" gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
}

// CheckInRequest is the body of POST /submissions.
type CheckInRequest struct {
	TaskID           uint     `json:"task_id" binding:"required"`
	CheckInLatitude  *float64 `json:"check_in_latitude" binding:"required,latitude"`
	CheckInLongitude *float64 `json:"check_in_longitude" binding:"required,longitude"`
	CheckInAccuracy  *float64 `json:"check_in_accuracy" binding:"omitempty,gte=0"`
}

// SubmissionUpdateRequest is the body of PUT /submissions/:id.
type SubmissionUpdateRequest struct {
	WorkerNotes       *string                    `json:"worker_notes"`
	ChecklistItems    []ChecklistCompletionInput `json:"checklist_items" binding:"dive"`
	Answers           []AnswerInput              `json:"answers" binding:"dive"`
	CheckOut          bool                       `json:"check_out"`
	CheckOutLatitude  *float64                   `json:"check_out_latitude" binding:"omitempty,latitude"`
	CheckOutLongitude *float64                   `json:"check_out_longitude" binding:"omitempty,longitude"`
}

// ReviewRequest is the body of POST /submissions/:id/review.
type ReviewRequest struct {
	Action SubmissionStatus `json:"action" binding:"required"`
	Notes  string           `json:"notes"`
}

// PhotoUploadForm is the non-file part of POST /submissions/:id/photos.
type PhotoUploadForm struct {
	PhotoType PhotoType `form:"photo_type" binding:"required,oneof=before after"`
	Caption   string    `form:"caption" binding:"max=500"`
}
