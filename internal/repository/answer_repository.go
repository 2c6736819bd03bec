package repository

import (
	"github.com/tdhoang/prepwise/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnswerTally is the authoritative recount used at completion.
type AnswerTally struct {
	Correct   int
	Incorrect int
	Skipped   int
	Answered  int
}

type AnswerRepository interface {
	Upsert(answer *model.Answer) error
	FindByTestAndQuestion(testID, questionID uint) (*model.Answer, error)
	FindByTest(testID uint) ([]model.Answer, error)
	Tally(testID uint) (AnswerTally, error)
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

// Upsert inserts or overwrites the answer keyed by (test_id, question_id),
// making resubmission idempotent per question.
func (r *answerRepository) Upsert(answer *model.Answer) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "test_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"selected_option_id", "status", "is_correct", "time_spent", "answered_at", "updated_at",
		}),
	}).Create(answer).Error
}

func (r *answerRepository) FindByTestAndQuestion(testID, questionID uint) (*model.Answer, error) {
	var answer model.Answer
	err := r.db.Where("test_id = ? AND question_id = ?", testID, questionID).First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *answerRepository) FindByTest(testID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.Preload("Score").Where("test_id = ?", testID).Find(&answers).Error
	return answers, err
}

func (r *answerRepository) Tally(testID uint) (AnswerTally, error) {
	var rows []struct {
		Status model.AnswerStatus
		N      int
	}
	err := r.db.Model(&model.Answer{}).
		Select("status, COUNT(*) as n").
		Where("test_id = ?", testID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return AnswerTally{}, err
	}

	var tally AnswerTally
	for _, row := range rows {
		switch row.Status {
		case model.AnswerCorrect:
			tally.Correct += row.N
		case model.AnswerIncorrect:
			tally.Incorrect += row.N
		case model.AnswerSkipped:
			tally.Skipped += row.N
		}
	}
	tally.Answered = tally.Correct + tally.Incorrect
	return tally, nil
}
