package model

import (
	"time"

	"gorm.io/gorm"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Question is one multiple-choice item in the shared question bank.
type Question struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Stem        string     `json:"stem" gorm:"type:text;not null"`
	Explanation string     `json:"explanation,omitempty" gorm:"type:text"`
	Difficulty  Difficulty `json:"difficulty" gorm:"not null;default:'MEDIUM';index"`
	Subject     string     `json:"subject" gorm:"index"`
	Topic       string     `json:"topic" gorm:"index"`
	System      string     `json:"system" gorm:"index"`

	// Running attempt counters, maintained by the answer ledger and read by
	// external analytics.
	TotalAttempts   int `json:"total_attempts"`
	CorrectAttempts int `json:"correct_attempts"`

	Options []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Option is one answer choice. IsCorrect must never be serialized to a
// quiz-taking client; response DTOs omit it.
type Option struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Label      string `json:"label"` // "A", "B", ...
	Text       string `json:"text" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"-" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
}

// User is the minimal identity row the orchestrator checks before building a
// test. Account management lives elsewhere.
type User struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Email       string `json:"email" gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
