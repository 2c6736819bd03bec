package model

import "time"

// TestSession is one contiguous attempt interval at a test. A test
// accumulates sessions across pause/resume cycles; SessionNumber is
// monotonically increasing per test and never reused.
type TestSession struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	TestID        uint       `json:"test_id" gorm:"not null;index"`
	UserID        uint       `json:"user_id" gorm:"not null;index"`
	SessionNumber int        `json:"session_number" gorm:"not null"`
	StartedAt     time.Time  `json:"started_at"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	ResumedAt     *time.Time `json:"resumed_at,omitempty"`

	CanResume         bool       `json:"can_resume"`
	ResumeDeadline    *time.Time `json:"resume_deadline,omitempty"`
	ResumeAttempts    int        `json:"resume_attempts"`
	MaxResumeAttempts int        `json:"max_resume_attempts" gorm:"default:3"`

	DeviceInfo string `json:"device_info,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`

	Events []StatusEvent `json:"events,omitempty" gorm:"foreignKey:TestSessionID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StatusEventType string

const (
	EventPaused    StatusEventType = "PAUSED"
	EventResumed   StatusEventType = "RESUMED"
	EventCompleted StatusEventType = "COMPLETED"
	EventExpired   StatusEventType = "EXPIRED"
)

// StatusEvent is an append-only audit entry for a session transition.
type StatusEvent struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	TestSessionID uint            `json:"test_session_id" gorm:"not null;index"`
	TestID        uint            `json:"test_id" gorm:"not null;index"`
	EventType     StatusEventType `json:"event_type" gorm:"not null"`
	Reason        string          `json:"reason,omitempty"`

	// Progress snapshot at the time of the transition.
	QuestionsAnswered int `json:"questions_answered"`
	QuestionsSkipped  int `json:"questions_skipped"`

	CreatedAt time.Time `json:"created_at"`
}
