package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shandle1/CheckDee-sub000/models"
)

// EvidenceStore persists checklist completions, question answers and photo
// records for a submission. Completions and answers are upserted on their
// natural keys so client retries never duplicate rows.
type EvidenceStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEvidenceStore(db *gorm.DB) *EvidenceStore {
	return &EvidenceStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a store that runs inside tx.
func (s *EvidenceStore) WithTx(tx *gorm.DB) *EvidenceStore {
	return &EvidenceStore{db: tx, now: s.now}
}

// Evidence is everything captured for one submission.
type Evidence struct {
	ChecklistCompletions []models.ChecklistCompletion `json:"checklist_completions"`
	Answers              []models.QuestionAnswer      `json:"answers"`
	Photos               []models.Photo               `json:"photos"`
}

// UpsertChecklist records a checklist completion. The item must belong to the
// submission's task.
func (s *EvidenceStore) UpsertChecklist(ctx context.Context, submission *models.Submission, in models.ChecklistCompletionInput) (*models.ChecklistCompletion, error) {
	db := s.db.WithContext(ctx)

	var item models.ChecklistItem
	if err := db.Where("id = ? AND task_id = ?", in.ChecklistItemID, submission.TaskID).First(&item).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, validationError("Checklist item does not belong to this task", map[string]string{
				"checklist_item_id": strconv.FormatUint(uint64(in.ChecklistItemID), 10),
			})
		}
		return nil, fmt.Errorf("load checklist item: %w", err)
	}

	now := s.now()
	row := models.ChecklistCompletion{
		SubmissionID:    submission.ID,
		ChecklistItemID: item.ID,
		Completed:       in.Completed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Completed {
		row.CompletedAt = &now
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "checklist_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "completed_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("upsert checklist completion: %w", err)
	}

	var stored models.ChecklistCompletion
	if err := db.Where("submission_id = ? AND checklist_item_id = ?", submission.ID, item.ID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload checklist completion: %w", err)
	}
	return &stored, nil
}

// UpsertAnswer records the answer to one of the task's questions. The payload
// must match the question type.
func (s *EvidenceStore) UpsertAnswer(ctx context.Context, submission *models.Submission, in models.AnswerInput) (*models.QuestionAnswer, error) {
	db := s.db.WithContext(ctx)

	var question models.Question
	if err := db.Where("id = ? AND task_id = ?", in.QuestionID, submission.TaskID).First(&question).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, validationError("Question does not belong to this task", map[string]string{
				"question_id": strconv.FormatUint(uint64(in.QuestionID), 10),
			})
		}
		return nil, fmt.Errorf("load question: %w", err)
	}

	if err := validateAnswer(&question, in.Answer); err != nil {
		return nil, err
	}

	now := s.now()
	row := models.QuestionAnswer{
		SubmissionID: submission.ID,
		QuestionID:   question.ID,
		Answer:       in.Answer,
		AnsweredAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer", "answered_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("upsert answer: %w", err)
	}

	var stored models.QuestionAnswer
	if err := db.Where("submission_id = ? AND question_id = ?", submission.ID, question.ID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload answer: %w", err)
	}
	return &stored, nil
}

// AddPhoto appends a photo record after the existing ones.
func (s *EvidenceStore) AddPhoto(ctx context.Context, photo *models.Photo) error {
	db := s.db.WithContext(ctx)

	var last struct{ MaxPosition int }
	if err := db.Model(&models.Photo{}).
		Select("COALESCE(MAX(position), 0) AS max_position").
		Where("submission_id = ?", photo.SubmissionID).
		Scan(&last).Error; err != nil {
		return fmt.Errorf("load photo position: %w", err)
	}

	photo.Position = last.MaxPosition + 1
	photo.CreatedAt = s.now()
	if err := db.Create(photo).Error; err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

// Evidence loads everything captured for a submission in stable order.
func (s *EvidenceStore) Evidence(ctx context.Context, submissionID uint) (*Evidence, error) {
	db := s.db.WithContext(ctx)
	ev := &Evidence{}

	if err := db.Where("submission_id = ?", submissionID).Order("checklist_item_id").Find(&ev.ChecklistCompletions).Error; err != nil {
		return nil, fmt.Errorf("load checklist completions: %w", err)
	}
	if err := db.Where("submission_id = ?", submissionID).Order("question_id").Find(&ev.Answers).Error; err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	if err := db.Where("submission_id = ?", submissionID).Order("position").Find(&ev.Photos).Error; err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}
	return ev, nil
}

// PhotoCounts returns the number of before and after photos.
func (s *EvidenceStore) PhotoCounts(ctx context.Context, submissionID uint) (models.PhotoCounts, error) {
	var rows []struct {
		Type  models.PhotoType
		Count int
	}
	err := s.db.WithContext(ctx).Model(&models.Photo{}).
		Select("type, COUNT(*) AS count").
		Where("submission_id = ?", submissionID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return models.PhotoCounts{}, fmt.Errorf("count photos: %w", err)
	}

	var counts models.PhotoCounts
	for _, r := range rows {
		switch r.Type {
		case models.PhotoBefore:
			counts.Before = r.Count
		case models.PhotoAfter:
			counts.After = r.Count
		}
	}
	return counts, nil
}

// MissingRequiredAnswers lists required questions of the task that have no
// answer on the submission.
func (s *EvidenceStore) MissingRequiredAnswers(ctx context.Context, submission *models.Submission) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("task_id = ? AND is_required = ?", submission.TaskID, true).
		Where("id NOT IN (?)", s.db.Model(&models.QuestionAnswer{}).Select("question_id").Where("submission_id = ?", submission.ID)).
		Order("position").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load missing answers: %w", err)
	}
	return ids, nil
}

func validateAnswer(q *models.Question, payload datatypes.JSON) error {
	fieldErr := func(msg string) error {
		return validationError("Invalid answer", map[string]string{
			"question_" + strconv.FormatUint(uint64(q.ID), 10): msg,
		})
	}

	var value interface{}
	if err := json.Unmarshal(payload, &value); err != nil {
		return fieldErr("answer is not valid JSON")
	}
	if value == nil {
		if q.IsRequired {
			return fieldErr("answer is required")
		}
		return nil
	}

	switch q.Type {
	case models.QuestionYesNo:
		if _, ok := value.(bool); !ok {
			return fieldErr("expected true or false")
		}
	case models.QuestionNumber:
		if _, ok := value.(float64); !ok {
			return fieldErr("expected a number")
		}
	case models.QuestionSingleChoice:
		choice, ok := value.(string)
		if !ok || !containsOption(q.Options, choice) {
			return fieldErr("expected one of the question options")
		}
	case models.QuestionMultiChoice:
		list, ok := value.([]interface{})
		if !ok {
			return fieldErr("expected a list of options")
		}
		for _, v := range list {
			choice, ok := v.(string)
			if !ok || !containsOption(q.Options, choice) {
				return fieldErr("expected only question options")
			}
		}
	default:
		if _, ok := value.(string); !ok {
			return fieldErr("expected text")
		}
	}
	return nil
}

func containsOption(raw datatypes.JSON, choice string) bool {
	var options []string
	if len(raw) == 0 || json.Unmarshal(raw, &options) != nil {
		return false
	}
	for _, o := range options {
		if o == choice {
			return true
		}
	}
	return false
}
