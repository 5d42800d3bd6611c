package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskStatus is mutated only by the submission lifecycle and the review gate.
type TaskStatus string

const (
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusApproved   TaskStatus = "approved"
	TaskStatusRejected   TaskStatus = "rejected"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

type QuestionType string

const (
	QuestionText         QuestionType = "text"
	QuestionNumber       QuestionType = "number"
	QuestionYesNo        QuestionType = "yes_no"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multiple_choice"
)

// Task is a location-bound unit of work assigned to one field worker.
type Task struct {
	ID                   uint            `json:"id" gorm:"primaryKey"`
	Title                string          `json:"title" gorm:"type:varchar(200);not null"`
	Description          string          `json:"description" gorm:"type:text"`
	Latitude             float64         `json:"latitude" gorm:"not null"`
	Longitude            float64         `json:"longitude" gorm:"not null"`
	RadiusMeters         float64         `json:"radius_meters" gorm:"not null;default:100"`
	AssignedWorkerID     *uint           `json:"assigned_worker_id" gorm:"index"`
	AssignedWorker       *User           `json:"assigned_worker,omitempty" gorm:"foreignKey:AssignedWorkerID"`
	CreatedByID          uint            `json:"created_by_id" gorm:"not null"`
	DueDate              *time.Time      `json:"due_date"`
	Priority             TaskPriority    `json:"priority" gorm:"type:varchar(20);not null;default:'medium'"`
	Status               TaskStatus      `json:"status" gorm:"type:varchar(20);not null;default:'assigned';index"`
	RequiredPhotosBefore int             `json:"required_photos_before" gorm:"default:0"`
	RequiredPhotosAfter  int             `json:"required_photos_after" gorm:"default:0"`
	ChecklistItems       []ChecklistItem `json:"checklist_items,omitempty" gorm:"foreignKey:TaskID"`
	Questions            []Question      `json:"questions,omitempty" gorm:"foreignKey:TaskID"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	DeletedAt            gorm.DeletedAt  `json:"deleted_at,omitempty" gorm:"index"`
}

// IsAssignedTo reports whether userID is the task's assigned worker.
func (t *Task) IsAssignedTo(userID uint) bool {
	return t.AssignedWorkerID != nil && *t.AssignedWorkerID == userID
}

type ChecklistItem struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TaskID     uint      `json:"task_id" gorm:"not null;index"`
	Position   int       `json:"position" gorm:"not null"`
	Text       string    `json:"text" gorm:"type:text;not null"`
	IsCritical bool      `json:"is_critical" gorm:"default:false"`
	CreatedAt  time.Time `json:"created_at"`
}

type Question struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	TaskID     uint           `json:"task_id" gorm:"not null;index"`
	Position   int            `json:"position" gorm:"not null"`
	Text       string         `json:"text" gorm:"type:text;not null"`
	Type       QuestionType   `json:"type" gorm:"type:varchar(20);not null;default:'text'"`
	IsRequired bool           `json:"is_required" gorm:"default:false"`
	Options    datatypes.JSON `json:"options,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TaskCreate represents the request structure for creating a task
type TaskCreate struct {
	Title                string                `json:"title" binding:"required,max=200"`
	Description          string                `json:"description"`
	Latitude             *float64              `json:"latitude" binding:"required,latitude"`
	Longitude            *float64              `json:"longitude" binding:"required,longitude"`
	RadiusMeters         float64               `json:"radius_meters" binding:"required,gt=0"`
	AssignedWorkerID     *uint                 `json:"assigned_worker_id"`
	DueDate              *time.Time            `json:"due_date"`
	Priority             TaskPriority          `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	RequiredPhotosBefore int                   `json:"required_photos_before" binding:"gte=0"`
	RequiredPhotosAfter  int                   `json:"required_photos_after" binding:"gte=0"`
	ChecklistItems       []ChecklistItemCreate `json:"checklist_items" binding:"dive"`
	Questions            []QuestionCreate      `json:"questions" binding:"dive"`
}

type ChecklistItemCreate struct {
	Text       string `json:"text" binding:"required"`
	IsCritical bool   `json:"is_critical"`
}

type QuestionCreate struct {
	Text       string       `json:"text" binding:"required"`
	Type       QuestionType `json:"type" binding:"omitempty,oneof=text number yes_no single_choice multiple_choice"`
	IsRequired bool         `json:"is_required"`
	Options    []string     `json:"options"`
}
