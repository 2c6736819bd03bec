package repository

import (
	"time"

	"github.com/tdhoang/prepwise/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ScoreRepository interface {
	UpsertForAnswer(score *model.QuestionScore) error
	DeleteForAnswer(answerID uint) error
	// CountCorrectSince returns the user's correct-answer count recorded at or
	// after the given instant, skipping the score attached to excludeAnswerID.
	// Callers pass the start of the current UTC day and the answer being scored,
	// so a resubmission never counts its own earlier score toward the streak.
	CountCorrectSince(userID uint, since time.Time, excludeAnswerID uint) (int, error)
	SumPointsForTest(testID uint) (int, error)
}

type scoreRepository struct {
	db *gorm.DB
}

func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

func (r *scoreRepository) UpsertForAnswer(score *model.QuestionScore) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "answer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_points", "difficulty", "time_bonus", "streak_multiplier", "total_points", "updated_at",
		}),
	}).Create(score).Error
}

func (r *scoreRepository) DeleteForAnswer(answerID uint) error {
	return r.db.Where("answer_id = ?", answerID).Delete(&model.QuestionScore{}).Error
}

func (r *scoreRepository) CountCorrectSince(userID uint, since time.Time, excludeAnswerID uint) (int, error) {
	var n int64
	err := r.db.Model(&model.QuestionScore{}).
		Where("user_id = ? AND created_at >= ? AND answer_id <> ?", userID, since, excludeAnswerID).
		Count(&n).Error
	return int(n), err
}

func (r *scoreRepository) SumPointsForTest(testID uint) (int, error) {
	var total int64
	err := r.db.Model(&model.QuestionScore{}).
		Joins("JOIN answers ON answers.id = question_scores.answer_id").
		Where("answers.test_id = ?", testID).
		Select("COALESCE(SUM(question_scores.total_points), 0)").
		Scan(&total).Error
	return int(total), err
}

// StartOfUTCDay truncates t to the beginning of its UTC calendar day. Streak
// counting is pinned to UTC regardless of client timezone.
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
