package model

import (
	"time"

	"gorm.io/gorm"
)

// TestStatus enumerates the lifecycle states of a test.
type TestStatus string

const (
	TestStatusActive    TestStatus = "ACTIVE"
	TestStatusPaused    TestStatus = "PAUSED"
	TestStatusResumed   TestStatus = "RESUMED"
	TestStatusCompleted TestStatus = "COMPLETED"
)

// IsLive reports whether the test still accepts answers and heartbeats.
func (s TestStatus) IsLive() bool {
	return s == TestStatusActive || s == TestStatusResumed
}

type CompletionStatus string

const (
	CompletionFull    CompletionStatus = "FULLY_COMPLETED"
	CompletionPartial CompletionStatus = "PARTIALLY_COMPLETED"
)

type TestMode string

const (
	ModeTutor TestMode = "TUTOR"
	ModeTimed TestMode = "TIMED"
)

// AbandonReason records why a live session ended without completion.
type AbandonReason string

const (
	AbandonUserQuit    AbandonReason = "USER_QUIT"
	AbandonAutoTimeout AbandonReason = "AUTO_TIMEOUT"
	AbandonAutoExpired AbandonReason = "AUTO_EXPIRED"
)

// Test is one quiz attempt by a user.
type Test struct {
	ID               uint             `gorm:"primarykey" json:"id"`
	UserID           uint             `json:"user_id" gorm:"not null;index"`
	Status           TestStatus       `json:"status" gorm:"not null;default:'ACTIVE';index"`
	CompletionStatus CompletionStatus `json:"completion_status,omitempty"`
	Mode             TestMode         `json:"mode" gorm:"not null;default:'TUTOR'"`
	TotalQuestions   int              `json:"total_questions" gorm:"not null"`
	TimeLimit        *int             `json:"time_limit,omitempty"` // minutes, nil when untimed

	AnsweredCount   int `json:"answered_count"`
	SkippedCount    int `json:"skipped_count"`
	UnansweredCount int `json:"unanswered_count"`

	Score          *float64 `json:"score,omitempty"` // percentage, set at completion
	TotalCorrect   int      `json:"total_correct"`
	TotalIncorrect int      `json:"total_incorrect"`
	TotalSkipped   int      `json:"total_skipped"`

	SessionToken   string        `json:"-" gorm:"index"` // opaque credential for the live session
	StartedAt      time.Time     `json:"started_at"`
	PausedAt       *time.Time    `json:"paused_at,omitempty"`
	ResumedAt      *time.Time    `json:"resumed_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	AttemptNumber  int           `json:"attempt_number" gorm:"default:1"`
	AbandonReason  AbandonReason `json:"abandon_reason,omitempty"`

	ApplyIncompletePenalty bool    `json:"apply_incomplete_penalty" gorm:"default:true"`
	IncompletePenalty      float64 `json:"incomplete_penalty" gorm:"default:0.8"`
	ScoreIncompleteAs      string  `json:"score_incomplete_as" gorm:"default:'penalized'"`

	Questions []TestQuestion `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	Answers   []Answer       `json:"answers,omitempty" gorm:"foreignKey:TestID"`
	Sessions  []TestSession  `json:"sessions,omitempty" gorm:"foreignKey:TestID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TestQuestion is the ordered association between a test and a question.
// Immutable once created.
type TestQuestion struct {
	ID           uint     `gorm:"primarykey" json:"id"`
	TestID       uint     `json:"test_id" gorm:"not null;uniqueIndex:idx_test_question"`
	QuestionID   uint     `json:"question_id" gorm:"not null;uniqueIndex:idx_test_question"`
	Question     Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	DisplayOrder int      `json:"display_order" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
}
