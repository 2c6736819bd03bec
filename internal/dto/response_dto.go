package dto

import "time"

type ErrorResponse struct {
	Message           string   `json:"message"`
	Reason            string   `json:"reason,omitempty"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
	Details           []string `json:"details,omitempty"`
}

// OptionDTO deliberately has no correctness field; correct-answer identity
// never reaches the quiz-taking client.
type OptionDTO struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type QuestionDTO struct {
	ID           uint        `json:"id"`
	Stem         string      `json:"stem"`
	Difficulty   string      `json:"difficulty"`
	Subject      string      `json:"subject,omitempty"`
	Topic        string      `json:"topic,omitempty"`
	System       string      `json:"system,omitempty"`
	DisplayOrder int         `json:"display_order"`
	Options      []OptionDTO `json:"options"`
}

type CreateTestResponse struct {
	TestID         uint          `json:"test_id"`
	SessionToken   string        `json:"session_token"`
	Mode           string        `json:"mode"`
	TimeLimit      *int          `json:"time_limit,omitempty"`
	TotalQuestions int           `json:"total_questions"`
	StartedAt      time.Time     `json:"started_at"`
	Questions      []QuestionDTO `json:"questions"`
}

type TestDetailResponse struct {
	TestID         uint          `json:"test_id"`
	Status         string        `json:"status"`
	Mode           string        `json:"mode"`
	TimeLimit      *int          `json:"time_limit,omitempty"`
	TotalQuestions int           `json:"total_questions"`
	AnsweredCount  int           `json:"answered_count"`
	SkippedCount   int           `json:"skipped_count"`
	StartedAt      time.Time     `json:"started_at"`
	Questions      []QuestionDTO `json:"questions"`
}

type SubmitAnswerResponse struct {
	QuestionID uint   `json:"question_id"`
	Status     string `json:"status"`
	IsCorrect  *bool  `json:"is_correct,omitempty"`
	Points     int    `json:"points"`
}

type HeartbeatResponse struct {
	SessionActive bool `json:"session_active"`
	TimeRemaining *int `json:"time_remaining,omitempty"` // seconds, nil when untimed
}

type PauseResponse struct {
	Status            string    `json:"status"`
	ResumeDeadline    time.Time `json:"resume_deadline"`
	SessionNumber     int       `json:"session_number"`
	ResumeAttempts    int       `json:"resume_attempts"`
	MaxResumeAttempts int       `json:"max_resume_attempts"`
}

// ResumeCheckResponse carries the guard diagnostics for UI polling. The same
// shape is returned whether or not the guards pass.
type ResumeCheckResponse struct {
	CanResume         bool       `json:"can_resume"`
	Reason            string     `json:"reason,omitempty"`
	RecommendedAction string     `json:"recommended_action"`
	ResumeDeadline    *time.Time `json:"resume_deadline,omitempty"`
	AttemptsRemaining int        `json:"attempts_remaining"`
}

type ResumeResponse struct {
	Status        string `json:"status"`
	SessionToken  string `json:"session_token"`
	SessionNumber int    `json:"session_number"`
	AttemptNumber int    `json:"attempt_number"`
}

type CompleteResponse struct {
	Status           string  `json:"status"`
	CompletionStatus string  `json:"completion_status"`
	FinalScore       float64 `json:"final_score"`
	Accuracy         float64 `json:"accuracy"`
	PenaltyApplied   bool    `json:"penalty_applied"`
	TotalPoints      int     `json:"total_points"`
	TotalCorrect     int     `json:"total_correct"`
	TotalIncorrect   int     `json:"total_incorrect"`
	TotalSkipped     int     `json:"total_skipped"`
	UnansweredCount  int     `json:"unanswered_count"`
}

type StatusResponse struct {
	Status            string     `json:"status"`
	RecommendedAction string     `json:"recommended_action"`
	CanResume         bool       `json:"can_resume"`
	Reason            string     `json:"reason,omitempty"`
	AnsweredCount     int        `json:"answered_count"`
	SkippedCount      int        `json:"skipped_count"`
	TotalQuestions    int        `json:"total_questions"`
	ResumeDeadline    *time.Time `json:"resume_deadline,omitempty"`
	Score             *float64   `json:"score,omitempty"`
}

// AnswerResultDTO is one row of the post-completion review breakdown.
type AnswerResultDTO struct {
	QuestionID uint   `json:"question_id"`
	Status     string `json:"status"`
	IsCorrect  *bool  `json:"is_correct,omitempty"`
	TimeSpent  int    `json:"time_spent"`
	Points     int    `json:"points"`
}

type ResultsResponse struct {
	TestID           uint              `json:"test_id"`
	CompletionStatus string            `json:"completion_status"`
	FinalScore       float64           `json:"final_score"`
	TotalPoints      int               `json:"total_points"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Answers          []AnswerResultDTO `json:"answers"`
}
