package dto

// TestFilters narrows the question pool for a new test. At least one of the
// three category lists must be non-empty.
type TestFilters struct {
	Subjects   []string `json:"subjects"`
	Topics     []string `json:"topics"`
	Systems    []string `json:"systems"`
	Difficulty *string  `json:"difficulty" binding:"omitempty,oneof=EASY MEDIUM HARD"`
}

type CreateTestRequest struct {
	Filters       TestFilters `json:"filters"`
	QuestionCount int         `json:"question_count" binding:"required,min=1,max=100"`
	Mode          string      `json:"mode" binding:"required,oneof=TUTOR TIMED"`
	TimeLimit     *int        `json:"time_limit" binding:"omitempty,min=1"` // minutes
}

type SubmitAnswerRequest struct {
	QuestionID       uint  `json:"question_id" binding:"required"`
	SelectedOptionID *uint `json:"selected_option_id"` // nil => skip
	TimeSpent        int   `json:"time_spent" binding:"min=0"`
}

// ProgressSnapshot is the client's view of its own progress, carried on
// heartbeat and pause requests as a write-through counter refresh.
type ProgressSnapshot struct {
	Answered int `json:"answered" binding:"min=0"`
	Skipped  int `json:"skipped" binding:"min=0"`
}

type HeartbeatRequest struct {
	SessionToken string           `json:"session_token" binding:"required"`
	Progress     ProgressSnapshot `json:"progress"`
}

type PauseRequest struct {
	Reason   string           `json:"reason"`
	Progress ProgressSnapshot `json:"progress"`
}

type ResumeRequest struct {
	// Action "check" evaluates the resume guards without mutation; "resume"
	// performs the transition.
	Action string `json:"action" binding:"required,oneof=check resume"`
}

type CompleteRequest struct {
	Auto   bool   `json:"auto"`
	Reason string `json:"reason"`
}
