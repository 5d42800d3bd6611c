package models

import "time"

// Review is an append-only log entry. A submission's status is the action of
// its most recent review.
type Review struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	SubmissionID uint             `json:"submission_id" gorm:"not null;index"`
	ReviewerID   uint             `json:"reviewer_id" gorm:"not null"`
	Reviewer     *User            `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
	Action       SubmissionStatus `json:"action" gorm:"type:varchar(20);not null"`
	Notes        string           `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time        `json:"created_at" gorm:"index"`
}
