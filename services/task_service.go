package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/utils"
)

// TaskService creates and reads tasks. Task status is never written here.
type TaskService struct {
	db        *gorm.DB
	minRadius float64
	maxRadius float64
}

func NewTaskService(db *gorm.DB, minRadius, maxRadius float64) *TaskService {
	return &TaskService{db: db, minRadius: minRadius, maxRadius: maxRadius}
}

// Create stores a task with its ordered checklist and questions.
func (s *TaskService) Create(ctx context.Context, creator *models.User, req models.TaskCreate) (*models.Task, error) {
	if creator == nil || !creator.IsReviewer() {
		return nil, forbidden("Only reviewers can create tasks")
	}

	fields := map[string]string{}
	if req.Latitude == nil || req.Longitude == nil || !utils.IsLocationValid(*req.Latitude, *req.Longitude) {
		fields["location"] = "latitude must be between -90 and 90, longitude between -180 and 180"
	}
	if !utils.ValidateGeofenceRadius(req.RadiusMeters, s.minRadius, s.maxRadius) {
		fields["radius_meters"] = fmt.Sprintf("must be between %.0f and %.0f", s.minRadius, s.maxRadius)
	}
	for i, q := range req.Questions {
		choice := q.Type == models.QuestionSingleChoice || q.Type == models.QuestionMultiChoice
		if choice && len(q.Options) == 0 {
			fields["questions["+strconv.Itoa(i)+"].options"] = "choice questions need options"
		}
	}
	if len(fields) > 0 {
		return nil, validationError("Invalid task", fields)
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	task := models.Task{
		Title:                req.Title,
		Description:          req.Description,
		Latitude:             *req.Latitude,
		Longitude:            *req.Longitude,
		RadiusMeters:         req.RadiusMeters,
		AssignedWorkerID:     req.AssignedWorkerID,
		CreatedByID:          creator.ID,
		DueDate:              req.DueDate,
		Priority:             priority,
		Status:               models.TaskStatusAssigned,
		RequiredPhotosBefore: req.RequiredPhotosBefore,
		RequiredPhotosAfter:  req.RequiredPhotosAfter,
	}
	for i, item := range req.ChecklistItems {
		task.ChecklistItems = append(task.ChecklistItems, models.ChecklistItem{
			Position:   i + 1,
			Text:       item.Text,
			IsCritical: item.IsCritical,
		})
	}
	for i, q := range req.Questions {
		qType := q.Type
		if qType == "" {
			qType = models.QuestionText
		}
		question := models.Question{Position: i + 1, Text: q.Text, Type: qType, IsRequired: q.IsRequired}
		if len(q.Options) > 0 {
			raw, err := json.Marshal(q.Options)
			if err != nil {
				return nil, fmt.Errorf("encode question options: %w", err)
			}
			question.Options = datatypes.JSON(raw)
		}
		task.Questions = append(task.Questions, question)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.AssignedWorkerID != nil {
			var worker models.User
			if err := tx.First(&worker, *req.AssignedWorkerID).Error; err != nil {
				if isRecordNotFound(err) {
					return validationError("Invalid task", map[string]string{"assigned_worker_id": "user does not exist"})
				}
				return fmt.Errorf("load worker: %w", err)
			}
			if !worker.IsWorker() || !worker.IsActive {
				return validationError("Invalid task", map[string]string{"assigned_worker_id": "user is not an active worker"})
			}
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📍 Task %d created by %d at (%.5f, %.5f) r=%.0fm", task.ID, creator.ID, task.Latitude, task.Longitude, task.RadiusMeters)
	return &task, nil
}

// Get returns a task to its assigned worker or to a reviewer.
func (s *TaskService) Get(ctx context.Context, viewer *models.User, taskID uint) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Preload("ChecklistItems", orderBy("position")).
		Preload("Questions", orderBy("position")).
		First(&task, taskID).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("Task not found")
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	if !task.IsAssignedTo(viewer.ID) && !viewer.IsReviewer() {
		return nil, forbidden("You are not assigned to this task")
	}
	return &task, nil
}

// ListAssigned returns the worker's tasks, most urgent due date first.
func (s *TaskService) ListAssigned(ctx context.Context, workerID uint) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Where("assigned_worker_id = ?", workerID).
		Order("due_date IS NULL, due_date, id").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return tasks, nil
}
