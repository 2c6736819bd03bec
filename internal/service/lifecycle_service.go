package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/tdhoang/prepwise/internal/apperr"
	"github.com/tdhoang/prepwise/internal/dto"
	"github.com/tdhoang/prepwise/internal/model"
	"github.com/tdhoang/prepwise/internal/repository"
	"gorm.io/gorm"
)

// SessionPolicy carries the configured liveness and resumption limits.
type SessionPolicy struct {
	InactivityTimeout time.Duration
	ResumeWindow      time.Duration
	MaxResumeAttempts int
}

// LifecycleService owns the test state machine: pause, resume, heartbeat,
// completion and the read-only status synthesis.
type LifecycleService interface {
	Pause(caller Caller, testID uint, req dto.PauseRequest) (*dto.PauseResponse, error)
	CheckResume(caller Caller, testID uint) (*dto.ResumeCheckResponse, error)
	Resume(caller Caller, testID uint) (*dto.ResumeResponse, error)
	Heartbeat(caller Caller, testID uint, req dto.HeartbeatRequest) (*dto.HeartbeatResponse, error)
	Complete(caller Caller, testID uint, req dto.CompleteRequest) (*dto.CompleteResponse, error)
	Status(caller Caller, testID uint) (*dto.StatusResponse, error)
	Results(caller Caller, testID uint) (*dto.ResultsResponse, error)
}

type lifecycleService struct {
	testRepo    repository.TestRepository
	answerRepo  repository.AnswerRepository
	sessionRepo repository.SessionRepository
	scoreRepo   repository.ScoreRepository
	leaderboard repository.LeaderboardRepository
	policy      SessionPolicy
}

func NewLifecycleService(
	testRepo repository.TestRepository,
	answerRepo repository.AnswerRepository,
	sessionRepo repository.SessionRepository,
	scoreRepo repository.ScoreRepository,
	leaderboard repository.LeaderboardRepository,
	policy SessionPolicy,
) LifecycleService {
	return &lifecycleService{
		testRepo:    testRepo,
		answerRepo:  answerRepo,
		sessionRepo: sessionRepo,
		scoreRepo:   scoreRepo,
		leaderboard: leaderboard,
		policy:      policy,
	}
}

// loadOwnedTest fetches the test and enforces ownership. All transitions go
// through this first.
func (s *lifecycleService) loadOwnedTest(caller Caller, testID uint) (*model.Test, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: test %d", apperr.ErrNotFound, testID)
		}
		return nil, fmt.Errorf("error fetching test %d: %w", testID, err)
	}
	if test.UserID != caller.UserID {
		return nil, apperr.ErrNotOwner
	}
	return test, nil
}

// Pause transitions a live test to PAUSED, closes the current session and
// opens the resume bookkeeping session with a fresh deadline.
func (s *lifecycleService) Pause(caller Caller, testID uint, req dto.PauseRequest) (*dto.PauseResponse, error) {
	test, err := s.loadOwnedTest(caller, testID)
	if err != nil {
		return nil, err
	}
	if test.Status == model.TestStatusCompleted {
		return nil, apperr.NewStateError(apperr.ReasonTestCompleted, apperr.ActionReview,
			"cannot pause a completed test")
	}

	reason := model.AbandonReason(req.Reason)
	if reason == "" {
		reason = model.AbandonUserQuit
	}
	return s.doPause(test, reason, req.Progress, time.Now())
}

// doPause performs the shared pause transition used by explicit pause and by
// the heartbeat inactivity path.
func (s *lifecycleService) doPause(test *model.Test, reason model.AbandonReason, progress dto.ProgressSnapshot, now time.Time) (*dto.PauseResponse, error) {
	current, err := s.sessionRepo.Latest(test.ID)
	if err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("Pause: latest session lookup failed")
		return nil, fmt.Errorf("error loading session: %w", err)
	}

	test.Status = model.TestStatusPaused
	test.PausedAt = &now
	test.LastActivityAt = now
	test.AbandonReason = reason
	if progress.Answered > 0 || progress.Skipped > 0 {
		test.AnsweredCount = progress.Answered
		test.SkippedCount = progress.Skipped
		unanswered := test.TotalQuestions - progress.Answered - progress.Skipped
		if unanswered < 0 {
			unanswered = 0
		}
		test.UnansweredCount = unanswered
	}
	if err := s.testRepo.Update(test); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("Pause: test update failed")
		return nil, fmt.Errorf("error pausing test: %w", err)
	}

	current.PausedAt = &now
	if err := s.sessionRepo.Update(current); err != nil {
		log.Warn().Err(err).Uint("testID", test.ID).Msg("Pause: closing session update failed")
	}

	deadline := now.Add(s.policy.ResumeWindow)
	nextNumber, err := s.sessionRepo.NextSessionNumber(test.ID)
	if err != nil {
		return nil, fmt.Errorf("error allocating session number: %w", err)
	}
	next := model.TestSession{
		TestID:            test.ID,
		UserID:            test.UserID,
		SessionNumber:     nextNumber,
		StartedAt:         now,
		PausedAt:          &now,
		CanResume:         true,
		ResumeDeadline:    &deadline,
		MaxResumeAttempts: s.policy.MaxResumeAttempts,
	}
	if err := s.sessionRepo.Create(nil, &next); err != nil {
		log.Error().Err(err).Uint("testID", test.ID).Msg("Pause: session create failed")
		return nil, fmt.Errorf("error creating pause session: %w", err)
	}

	// Audit entry against the session that was live when the pause hit.
	s.appendEvent(current.ID, test, model.EventPaused, string(reason))

	log.Info().Uint("testID", test.ID).Str("reason", string(reason)).
		Time("resumeDeadline", deadline).Msg("Test paused")

	return &dto.PauseResponse{
		Status:            string(test.Status),
		ResumeDeadline:    deadline,
		SessionNumber:     next.SessionNumber,
		ResumeAttempts:    next.ResumeAttempts,
		MaxResumeAttempts: next.MaxResumeAttempts,
	}, nil
}

// resumeGuards evaluates the three resume preconditions in order and returns
// the first failure. Pure over its inputs.
func resumeGuards(test *model.Test, session *model.TestSession, now time.Time) *apperr.StateError {
	if test.Status != model.TestStatusPaused {
		if test.Status == model.TestStatusCompleted {
			return apperr.NewStateError(apperr.ReasonTestCompleted, apperr.ActionReview,
				"test is already completed")
		}
		return apperr.NewStateError(apperr.ReasonNotPaused, apperr.ActionNone,
			"test is not paused")
	}
	if session.ResumeDeadline == nil || now.After(*session.ResumeDeadline) {
		return apperr.NewStateError(apperr.ReasonDeadlineExpired, apperr.ActionRestart,
			"resume deadline has expired")
	}
	if session.ResumeAttempts >= session.MaxResumeAttempts {
		return apperr.NewStateError(apperr.ReasonMaxAttempts, apperr.ActionRestart,
			"maximum resume attempts exceeded")
	}
	return nil
}

// CheckResume is the dry-run guard evaluation for UI polling. Never mutates.
func (s *lifecycleService) CheckResume(caller Caller, testID uint) (*dto.ResumeCheckResponse, error) {
	test, err := s.loadOwnedTest(caller, testID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessionRepo.Latest(testID)
	if err != nil {
		return nil, fmt.Errorf("error loading session: %w", err)
	}

	resp := dto.ResumeCheckResponse{
		ResumeDeadline:    session.ResumeDeadline,
		AttemptsRemaining: session.MaxResumeAttempts - session.ResumeAttempts,
	}
	if resp.AttemptsRemaining < 0 {
		resp.AttemptsRemaining = 0
	}
	if guard := resumeGuards(test, session, time.Now()); guard != nil {
		resp.CanResume = false
		resp.Reason = guard.Reason
		resp.RecommendedAction = string(guard.Action)
		return &resp, nil
	}
	resp.CanResume = true
	resp.RecommendedAction = string(apperr.ActionResume)
	return &resp, nil
}

// Resume executes the guarded transition back to a live state, issuing a new
// session token.
func (s *lifecycleService) Resume(caller Caller, testID uint) (*dto.ResumeResponse, error) {
	test, err := s.loadOwnedTest(caller, testID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessionRepo.Latest(testID)
	if err != nil {
		return nil, fmt.Errorf("error loading session: %w", err)
	}

	now := time.Now()
	if guard := resumeGuards(test, session, now); guard != nil {
		return nil, guard
	}

	test.Status = model.TestStatusResumed
	test.ResumedAt = &now
	test.LastActivityAt = now
	test.AttemptNumber++
	test.SessionToken = uuid.NewString()
	if err := s.testRepo.Update(test); err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Resume: test update failed")
		return nil, fmt.Errorf("error resuming test: %w", err)
	}

	session.ResumeAttempts++
	session.ResumedAt = &now
	if err := s.sessionRepo.Update(session); err != nil {
		log.Warn().Err(err).Uint("testID", testID).Msg("Resume: session update failed")
	}

	s.appendEvent(session.ID, test, model.EventResumed, "")

	log.Info().Uint("testID", testID).Int("attemptNumber", test.AttemptNumber).
		Int("resumeAttempts", session.ResumeAttempts).Msg("Test resumed")

	return &dto.ResumeResponse{
		Status:        string(test.Status),
		SessionToken:  test.SessionToken,
		SessionNumber: session.SessionNumber,
		AttemptNumber: test.AttemptNumber,
	}, nil
}

// Heartbeat validates the live session token, lazily detects inactivity and
// refreshes the activity window and progress counters.
func (s *lifecycleService) Heartbeat(caller Caller, testID uint, req dto.HeartbeatRequest) (*dto.HeartbeatResponse, error) {
	test, err := s.loadOwnedTest(caller, testID)
	if err != nil {
		return nil, err
	}
	if test.Status == model.TestStatusCompleted {
		return nil, apperr.NewStateError(apperr.ReasonTestCompleted, apperr.ActionReview,
			"test is already completed")
	}
	if !test.Status.IsLive() {
		return nil, apperr.NewStateError(apperr.ReasonTestNotLive, apperr.ActionResume,
			"test has no live session")
	}

	// Token fence: a stale client must not revive a superseded session.
	if req.SessionToken != test.SessionToken {
		return nil, apperr.NewStateError(apperr.ReasonInvalidSession, apperr.ActionNone,
			"session token does not match the live session")
	}

	now := time.Now()
	if now.Sub(test.LastActivityAt) > s.policy.InactivityTimeout {
		if _, err := s.doPause(test, model.AbandonAutoTimeout, dto.ProgressSnapshot{}, now); err != nil {
			log.Error().Err(err).Uint("testID", testID).Msg("Heartbeat: auto-pause failed")
			return nil, fmt.Errorf("error auto-pausing test: %w", err)
		}
		return nil, apperr.NewStateError(apperr.ReasonSessionExpired, apperr.ActionResume,
			"session expired after inactivity")
	}

	updates := map[string]interface{}{
		"last_activity_at": now,
	}
	if req.Progress.Answered > 0 || req.Progress.Skipped > 0 {
		unanswered := test.TotalQuestions - req.Progress.Answered - req.Progress.Skipped
		if unanswered < 0 {
			unanswered = 0
		}
		updates["answered_count"] = req.Progress.Answered
		updates["skipped_count"] = req.Progress.Skipped
		updates["unanswered_count"] = unanswered
	}
	if err := s.testRepo.UpdateFields(testID, updates); err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Heartbeat: activity update failed")
		return nil, fmt.Errorf("error recording heartbeat: %w", err)
	}

	resp := dto.HeartbeatResponse{SessionActive: true}
	if test.TimeLimit != nil {
		remaining := *test.TimeLimit*60 - int(now.Sub(test.StartedAt).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		resp.TimeRemaining = &remaining
	}
	return &resp, nil
}

// finalScore applies the incomplete-penalty policy. Returns the score and
// whether the penalty fired.
func finalScore(accuracy float64, unanswered int, applyPenalty bool, penalty float64) (float64, bool) {
	if applyPenalty && unanswered > 0 {
		return accuracy * penalty, true
	}
	return accuracy, false
}

// Complete is the terminal transition. The answer ledger recount is
// authoritative; cached counters are overwritten from it.
func (s *lifecycleService) Complete(caller Caller, testID uint, req dto.CompleteRequest) (*dto.CompleteResponse, error) {
	test, err := s.loadOwnedTest(caller, testID)
	if err != nil {
		return nil, err
	}
	if test.Status == model.TestStatusCompleted {
		return nil, apperr.NewStateError(apperr.ReasonTestCompleted, apperr.ActionReview,
			"test is already completed")
	}

	tally, err := s.answerRepo.Tally(testID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Complete: tally failed")
		return nil, fmt.Errorf("error recounting answers: %w", err)
	}

	unanswered := test.TotalQuestions - tally.Answered - tally.Skipped
	if unanswered < 0 {
		unanswered = 0
	}

	accuracy := 0.0
	if test.TotalQuestions > 0 {
		accuracy = float64(tally.Correct) / float64(test.TotalQuestions) * 100
	}
	score, penalized := finalScore(accuracy, unanswered, test.ApplyIncompletePenalty, test.IncompletePenalty)

	now := time.Now()
	test.Status = model.TestStatusCompleted
	test.CompletedAt = &now
	test.LastActivityAt = now
	test.Score = &score
	test.TotalCorrect = tally.Correct
	test.TotalIncorrect = tally.Incorrect
	test.TotalSkipped = tally.Skipped
	test.AnsweredCount = tally.Answered
	test.SkippedCount = tally.Skipped
	test.UnansweredCount = unanswered
	if unanswered == 0 {
		test.CompletionStatus = model.CompletionFull
	} else {
		test.CompletionStatus = model.CompletionPartial
	}
	if req.Auto {
		reason := model.AbandonReason(req.Reason)
		if reason == "" {
			reason = model.AbandonAutoExpired
		}
		test.AbandonReason = reason
	}

	// Single write for the terminal transition: a failure here leaves no
	// partial completion state behind.
	if err := s.testRepo.Update(test); err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Complete: test update failed")
		return nil, fmt.Errorf("error completing test: %w", err)
	}

	totalPoints, err := s.scoreRepo.SumPointsForTest(testID)
	if err != nil {
		log.Warn().Err(err).Uint("testID", testID).Msg("Complete: points sum failed")
	}

	if session, sErr := s.sessionRepo.Latest(testID); sErr == nil {
		s.appendEvent(session.ID, test, model.EventCompleted, req.Reason)
	} else {
		log.Warn().Err(sErr).Uint("testID", testID).Msg("Complete: no session for terminal event")
	}

	// Downstream leaderboard aggregate. Best-effort: never fails completion.
	if err := s.leaderboard.RecordCompletion(context.Background(), test.UserID, score, tally.Correct, now); err != nil {
		log.Warn().Err(err).Uint("testID", testID).Uint("userID", test.UserID).
			Msg("Complete: leaderboard update failed")
	}

	log.Info().Uint("testID", testID).Float64("finalScore", score).
		Str("completionStatus", string(test.CompletionStatus)).Bool("auto", req.Auto).
		Msg("Test completed")

	return &dto.CompleteResponse{
		Status:           string(test.Status),
		CompletionStatus: string(test.CompletionStatus),
		FinalScore:       score,
		Accuracy:         accuracy,
		PenaltyApplied:   penalized,
		TotalPoints:      totalPoints,
		TotalCorrect:     tally.Correct,
		TotalIncorrect:   tally.Incorrect,
		TotalSkipped:     tally.Skipped,
		UnansweredCount:  unanswered,
	}, nil
}

// Status is the read-only synthesis of the state machine into a recommended
// next action.
func (s *lifecycleService) Status(caller Caller, testID uint) (*dto.StatusResponse, error) {
	test, err := s.loadOwnedTest(caller, testID)
	if err != nil {
		return nil, err
	}

	resp := dto.StatusResponse{
		Status:         string(test.Status),
		AnsweredCount:  test.AnsweredCount,
		SkippedCount:   test.SkippedCount,
		TotalQuestions: test.TotalQuestions,
		Score:          test.Score,
	}

	switch {
	case test.Status == model.TestStatusCompleted:
		resp.RecommendedAction = string(apperr.ActionReview)
	case test.Status == model.TestStatusPaused:
		session, err := s.sessionRepo.Latest(testID)
		if err != nil {
			return nil, fmt.Errorf("error loading session: %w", err)
		}
		resp.ResumeDeadline = session.ResumeDeadline
		if guard := resumeGuards(test, session, time.Now()); guard != nil {
			resp.Reason = guard.Reason
			resp.RecommendedAction = string(guard.Action)
		} else {
			resp.CanResume = true
			resp.RecommendedAction = string(apperr.ActionResume)
		}
	default:
		resp.RecommendedAction = string(apperr.ActionNone)
	}
	return &resp, nil
}

// Results returns the per-question review breakdown for a completed test.
func (s *lifecycleService) Results(caller Caller, testID uint) (*dto.ResultsResponse, error) {
	test, err := s.loadOwnedTest(caller, testID)
	if err != nil {
		return nil, err
	}
	if test.Status != model.TestStatusCompleted {
		return nil, apperr.NewStateError(apperr.ReasonTestNotCompleted, apperr.ActionNone,
			"results are available once the test is completed")
	}

	answers, err := s.answerRepo.FindByTest(testID)
	if err != nil {
		return nil, fmt.Errorf("error loading answers: %w", err)
	}

	totalPoints := 0
	resp := ResultsResponseFromTest(test)
	for _, a := range answers {
		var row dto.AnswerResultDTO
		copier.Copy(&row, &a)
		row.Status = string(a.Status)
		if a.Score != nil {
			row.Points = a.Score.TotalPoints
			totalPoints += a.Score.TotalPoints
		}
		resp.Answers = append(resp.Answers, row)
	}
	resp.TotalPoints = totalPoints
	return resp, nil
}

// ResultsResponseFromTest seeds the results envelope from the test row.
func ResultsResponseFromTest(test *model.Test) *dto.ResultsResponse {
	resp := dto.ResultsResponse{
		TestID:           test.ID,
		CompletionStatus: string(test.CompletionStatus),
		CompletedAt:      test.CompletedAt,
	}
	if test.Score != nil {
		resp.FinalScore = *test.Score
	}
	return &resp
}

// appendEvent writes a status audit entry with the current progress snapshot.
// Best-effort beyond the primary transition.
func (s *lifecycleService) appendEvent(sessionID uint, test *model.Test, eventType model.StatusEventType, reason string) {
	event := model.StatusEvent{
		TestSessionID:     sessionID,
		TestID:            test.ID,
		EventType:         eventType,
		Reason:            reason,
		QuestionsAnswered: test.AnsweredCount,
		QuestionsSkipped:  test.SkippedCount,
	}
	if err := s.sessionRepo.AppendEvent(&event); err != nil {
		log.Warn().Err(err).Uint("testID", test.ID).Str("eventType", string(eventType)).
			Msg("Status event append failed")
	}
}
