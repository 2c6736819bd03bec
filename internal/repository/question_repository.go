package repository

import (
	"github.com/tdhoang/prepwise/internal/model"
	"gorm.io/gorm"
)

// QuestionFilters narrows the sampling pool for a new test. At least one of
// Subjects/Topics/Systems must be non-empty.
type QuestionFilters struct {
	Subjects   []string
	Topics     []string
	Systems    []string
	Difficulty *model.Difficulty
}

func (f QuestionFilters) Empty() bool {
	return len(f.Subjects) == 0 && len(f.Topics) == 0 && len(f.Systems) == 0
}

type QuestionRepository interface {
	Sample(filters QuestionFilters, limit int) ([]model.Question, error)
	FindByIDWithOptions(id uint) (*model.Question, error)
	IncrementAttempts(questionID uint, correct bool) error
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) Sample(filters QuestionFilters, limit int) ([]model.Question, error) {
	q := r.db.Model(&model.Question{}).Preload("Options")
	if len(filters.Subjects) > 0 {
		q = q.Where("subject IN ?", filters.Subjects)
	}
	if len(filters.Topics) > 0 {
		q = q.Where("topic IN ?", filters.Topics)
	}
	if len(filters.Systems) > 0 {
		q = q.Where("system IN ?", filters.Systems)
	}
	if filters.Difficulty != nil {
		q = q.Where("difficulty = ?", *filters.Difficulty)
	}

	var questions []model.Question
	err := q.Limit(limit).Find(&questions).Error
	return questions, err
}

func (r *questionRepository) FindByIDWithOptions(id uint) (*model.Question, error) {
	var question model.Question
	if err := r.db.Preload("Options").First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *questionRepository) IncrementAttempts(questionID uint, correct bool) error {
	updates := map[string]interface{}{
		"total_attempts": gorm.Expr("total_attempts + 1"),
	}
	if correct {
		updates["correct_attempts"] = gorm.Expr("correct_attempts + 1")
	}
	return r.db.Model(&model.Question{}).Where("id = ?", questionID).Updates(updates).Error
}
