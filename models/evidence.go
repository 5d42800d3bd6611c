package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChecklistCompletion is unique per (submission, checklist item); repeated
// writes overwrite the row.
type ChecklistCompletion struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	SubmissionID    uint       `json:"submission_id" gorm:"not null;uniqueIndex:idx_completion_submission_item"`
	ChecklistItemID uint       `json:"checklist_item_id" gorm:"not null;uniqueIndex:idx_completion_submission_item"`
	Completed       bool       `json:"completed" gorm:"not null;default:false"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// QuestionAnswer is unique per (submission, question).
type QuestionAnswer struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SubmissionID uint           `json:"submission_id" gorm:"not null;uniqueIndex:idx_answer_submission_question"`
	QuestionID   uint           `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_submission_question"`
	Answer       datatypes.JSON `json:"answer"`
	AnsweredAt   time.Time      `json:"answered_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type PhotoType string

const (
	PhotoBefore PhotoType = "before"
	PhotoAfter  PhotoType = "after"
)

// Photo records are append-only.
type Photo struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SubmissionID uint           `json:"submission_id" gorm:"not null;index"`
	Position     int            `json:"position" gorm:"not null"`
	URL          string         `json:"url" gorm:"type:varchar(500);not null"`
	Type         PhotoType      `json:"photo_type" gorm:"type:varchar(10);not null"`
	Caption      string         `json:"caption" gorm:"type:text"`
	Metadata     datatypes.JSON `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ChecklistCompletionInput is one checklist entry in PUT /submissions/:id.
type ChecklistCompletionInput struct {
	ChecklistItemID uint `json:"checklist_item_id" binding:"required"`
	Completed       bool `json:"completed"`
}

// AnswerInput carries any JSON answer payload for a question.
type AnswerInput struct {
	QuestionID uint           `json:"question_id" binding:"required"`
	Answer     datatypes.JSON `json:"answer" binding:"required"`
}

// PhotoCounts summarises captured photos per type.
type PhotoCounts struct {
	Before int `json:"before"`
	After  int `json:"after"`
}
