package model

import "time"

type AnswerStatus string

const (
	AnswerNotAnswered AnswerStatus = "NOT_ANSWERED"
	AnswerCorrect     AnswerStatus = "CORRECT"
	AnswerIncorrect   AnswerStatus = "INCORRECT"
	AnswerSkipped     AnswerStatus = "SKIPPED"
)

// Answer is a user's response to one question within one test. Unique per
// (TestID, QuestionID); resubmissions upsert in place.
type Answer struct {
	ID               uint         `gorm:"primarykey" json:"id"`
	TestID           uint         `json:"test_id" gorm:"not null;uniqueIndex:idx_answer_test_question"`
	QuestionID       uint         `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_test_question"`
	SelectedOptionID *uint        `json:"selected_option_id,omitempty"`
	Status           AnswerStatus `json:"status" gorm:"not null;default:'NOT_ANSWERED'"`
	IsCorrect        *bool        `json:"is_correct,omitempty"` // nil until an option is chosen
	TimeSpent        int          `json:"time_spent"`           // seconds
	AnsweredAt       time.Time    `json:"answered_at"`

	Score *QuestionScore `json:"score,omitempty" gorm:"foreignKey:AnswerID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuestionScore is the points breakdown for one correct answer. At most one
// per answer; recomputed on resubmission.
type QuestionScore struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	AnswerID         uint       `json:"answer_id" gorm:"not null;uniqueIndex"`
	UserID           uint       `json:"user_id" gorm:"not null;index:idx_score_user_day"`
	BasePoints       int        `json:"base_points"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeBonus        float64    `json:"time_bonus"`
	StreakMultiplier float64    `json:"streak_multiplier"`
	TotalPoints      int        `json:"total_points"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_score_user_day"`
	UpdatedAt time.Time `json:"updated_at"`
}
