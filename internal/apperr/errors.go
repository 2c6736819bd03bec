package apperr

import "errors"

var (
	// ErrNotFound is returned when a referenced test/question/option/user does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrNotOwner is returned when the caller does not own the referenced test.
	ErrNotOwner = errors.New("caller does not own this test")
	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientPool is returned when the question bank cannot satisfy the requested count.
	ErrInsufficientPool = errors.New("insufficient question pool")
)

// RecommendedAction tells the client what to do next after a state-machine
// outcome, so policy is not re-derived client-side.
type RecommendedAction string

const (
	ActionResume  RecommendedAction = "RESUME"
	ActionRestart RecommendedAction = "RESTART"
	ActionReview  RecommendedAction = "REVIEW"
	ActionNone    RecommendedAction = "NONE"
)

// Machine-readable reason codes for state-conflict and exhaustion outcomes.
const (
	ReasonTestCompleted     = "test_completed"
	ReasonNotPaused         = "not_paused"
	ReasonDeadlineExpired   = "resume_deadline_expired"
	ReasonMaxAttempts       = "max_attempts_exceeded"
	ReasonInvalidSession    = "invalid_session"
	ReasonSessionExpired    = "session_expired"
	ReasonInsufficientPool  = "insufficient_pool"
	ReasonQuestionNotInTest = "question_not_in_test"
	ReasonTestNotLive       = "test_not_live"
	ReasonTestNotCompleted  = "test_not_completed"
)

// StateError is an expected lifecycle outcome carrying a reason code and the
// recommended client action. It is not a transport failure.
type StateError struct {
	Reason  string
	Action  RecommendedAction
	Message string
}

func (e *StateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Reason
}

// NewStateError builds a StateError with an explicit recommendation.
func NewStateError(reason string, action RecommendedAction, message string) *StateError {
	return &StateError{Reason: reason, Action: action, Message: message}
}

// AsStateError unwraps err into a *StateError if it is one.
func AsStateError(err error) (*StateError, bool) {
	var se *StateError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
