package service_test

import (
	"testing"
	"time"

	"github.com/tdhoang/prepwise/internal/apperr"
	"github.com/tdhoang/prepwise/internal/dto"
	"github.com/tdhoang/prepwise/internal/model"
	"github.com/tdhoang/prepwise/internal/service"
)

type lifecycleFixture struct {
	testRepo    *fakeTestRepo
	answerRepo  *fakeAnswerRepo
	sessionRepo *fakeSessionRepo
	scoreRepo   *fakeScoreRepo
	leaderboard *fakeLeaderboard
	svc         service.LifecycleService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		testRepo:    newFakeTestRepo(),
		answerRepo:  newFakeAnswerRepo(),
		sessionRepo: newFakeSessionRepo(),
		scoreRepo:   newFakeScoreRepo(),
		leaderboard: &fakeLeaderboard{},
	}
	f.svc = service.NewLifecycleService(
		f.testRepo, f.answerRepo, f.sessionRepo, f.scoreRepo, f.leaderboard,
		service.SessionPolicy{
			InactivityTimeout: 30 * time.Minute,
			ResumeWindow:      15 * time.Minute,
			MaxResumeAttempts: 3,
		},
	)
	return f
}

func (f *lifecycleFixture) seedTest(userID uint, status model.TestStatus, totalQuestions int) *model.Test {
	now := time.Now()
	test := f.testRepo.add(&model.Test{
		UserID:                 userID,
		Status:                 status,
		TotalQuestions:         totalQuestions,
		UnansweredCount:        totalQuestions,
		SessionToken:           "tok-live",
		StartedAt:              now,
		LastActivityAt:         now,
		AttemptNumber:          1,
		ApplyIncompletePenalty: true,
		IncompletePenalty:      0.8,
	})
	f.sessionRepo.Create(nil, &model.TestSession{
		TestID:            test.ID,
		UserID:            userID,
		SessionNumber:     1,
		StartedAt:         now,
		MaxResumeAttempts: 3,
	})
	return test
}

func (f *lifecycleFixture) pausedSession(test *model.Test, deadline time.Time, attempts int) *model.TestSession {
	now := time.Now()
	session := &model.TestSession{
		TestID:            test.ID,
		UserID:            test.UserID,
		SessionNumber:     2,
		StartedAt:         now,
		PausedAt:          &now,
		CanResume:         true,
		ResumeDeadline:    &deadline,
		ResumeAttempts:    attempts,
		MaxResumeAttempts: 3,
	}
	f.sessionRepo.Create(nil, session)
	test.Status = model.TestStatusPaused
	return session
}

const caller = 7

func TestPauseSetsDeadlineAndNewSession(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)

	resp, err := f.svc.Pause(service.Caller{UserID: caller}, test.ID, dto.PauseRequest{
		Progress: dto.ProgressSnapshot{Answered: 4, Skipped: 1},
	})
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	if test.Status != model.TestStatusPaused {
		t.Errorf("status = %s, want PAUSED", test.Status)
	}
	if test.AbandonReason != model.AbandonUserQuit {
		t.Errorf("abandon reason = %s, want USER_QUIT", test.AbandonReason)
	}
	if resp.SessionNumber != 2 {
		t.Errorf("session number = %d, want 2", resp.SessionNumber)
	}
	until := time.Until(resp.ResumeDeadline)
	if until < 14*time.Minute || until > 15*time.Minute {
		t.Errorf("resume deadline %v not ~15 minutes out", until)
	}
	if len(f.sessionRepo.events) != 1 || f.sessionRepo.events[0].EventType != model.EventPaused {
		t.Fatalf("expected one PAUSED event, got %+v", f.sessionRepo.events)
	}
	if test.AnsweredCount != 4 || test.SkippedCount != 1 || test.UnansweredCount != 5 {
		t.Errorf("progress snapshot not applied: %d/%d/%d", test.AnsweredCount, test.SkippedCount, test.UnansweredCount)
	}
}

func TestPauseCompletedTestRejected(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusCompleted, 10)

	_, err := f.svc.Pause(service.Caller{UserID: caller}, test.ID, dto.PauseRequest{})
	se, ok := apperr.AsStateError(err)
	if !ok || se.Reason != apperr.ReasonTestCompleted {
		t.Fatalf("expected test_completed state error, got %v", err)
	}
}

func TestResumeGuardOrderDeadlineBeforeAttempts(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)
	// Past deadline AND attempts exhausted: deadline must win.
	f.pausedSession(test, time.Now().Add(-time.Minute), 3)

	_, err := f.svc.Resume(service.Caller{UserID: caller}, test.ID)
	se, ok := apperr.AsStateError(err)
	if !ok || se.Reason != apperr.ReasonDeadlineExpired {
		t.Fatalf("expected resume_deadline_expired, got %v", err)
	}
	if se.Action != apperr.ActionRestart {
		t.Errorf("recommended action = %s, want RESTART", se.Action)
	}
}

func TestResumeMaxAttemptsWithinDeadline(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)
	f.pausedSession(test, time.Now().Add(10*time.Minute), 3)

	_, err := f.svc.Resume(service.Caller{UserID: caller}, test.ID)
	se, ok := apperr.AsStateError(err)
	if !ok || se.Reason != apperr.ReasonMaxAttempts {
		t.Fatalf("expected max_attempts_exceeded, got %v", err)
	}
}

func TestResumeIssuesNewToken(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)
	session := f.pausedSession(test, time.Now().Add(10*time.Minute), 1)
	oldToken := test.SessionToken

	resp, err := f.svc.Resume(service.Caller{UserID: caller}, test.ID)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resp.SessionToken == "" || resp.SessionToken == oldToken {
		t.Errorf("expected fresh session token, got %q", resp.SessionToken)
	}
	if test.Status != model.TestStatusResumed {
		t.Errorf("status = %s, want RESUMED", test.Status)
	}
	if test.AttemptNumber != 2 {
		t.Errorf("attempt number = %d, want 2", test.AttemptNumber)
	}
	if session.ResumeAttempts != 2 {
		t.Errorf("resume attempts = %d, want 2", session.ResumeAttempts)
	}
}

func TestCheckResumePastDeadlineRecommendsRestart(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)
	f.pausedSession(test, time.Now().Add(-time.Minute), 0)

	resp, err := f.svc.CheckResume(service.Caller{UserID: caller}, test.ID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if resp.CanResume {
		t.Error("expected can_resume=false")
	}
	if resp.Reason != apperr.ReasonDeadlineExpired {
		t.Errorf("reason = %s, want resume_deadline_expired", resp.Reason)
	}
	if resp.RecommendedAction != string(apperr.ActionRestart) {
		t.Errorf("recommended action = %s, want RESTART", resp.RecommendedAction)
	}
	if test.Status != model.TestStatusPaused {
		t.Error("check must not mutate test status")
	}
}

func TestHeartbeatTokenMismatchMutatesNothing(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)

	_, err := f.svc.Heartbeat(service.Caller{UserID: caller}, test.ID, dto.HeartbeatRequest{
		SessionToken: "tok-stale",
	})
	se, ok := apperr.AsStateError(err)
	if !ok || se.Reason != apperr.ReasonInvalidSession {
		t.Fatalf("expected invalid_session, got %v", err)
	}
	if len(f.testRepo.fieldCalls) != 0 || f.testRepo.updateCalls != 0 {
		t.Error("heartbeat with bad token must not write")
	}
}

func TestHeartbeatAutoPausesAfterInactivity(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)
	test.LastActivityAt = time.Now().Add(-31 * time.Minute)

	_, err := f.svc.Heartbeat(service.Caller{UserID: caller}, test.ID, dto.HeartbeatRequest{
		SessionToken: "tok-live",
	})
	se, ok := apperr.AsStateError(err)
	if !ok || se.Reason != apperr.ReasonSessionExpired {
		t.Fatalf("expected session_expired, got %v", err)
	}
	if test.Status != model.TestStatusPaused {
		t.Errorf("status = %s, want PAUSED", test.Status)
	}
	if test.AbandonReason != model.AbandonAutoTimeout {
		t.Errorf("abandon reason = %s, want AUTO_TIMEOUT", test.AbandonReason)
	}
}

func TestHeartbeatRefreshesActivityAndTimeRemaining(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)
	limit := 30
	test.TimeLimit = &limit
	test.StartedAt = time.Now().Add(-10 * time.Minute)

	resp, err := f.svc.Heartbeat(service.Caller{UserID: caller}, test.ID, dto.HeartbeatRequest{
		SessionToken: "tok-live",
		Progress:     dto.ProgressSnapshot{Answered: 3, Skipped: 2},
	})
	if err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
	if !resp.SessionActive {
		t.Error("expected session_active=true")
	}
	if resp.TimeRemaining == nil {
		t.Fatal("expected time_remaining for a timed test")
	}
	// ~20 minutes left of the 30-minute limit.
	if *resp.TimeRemaining < 19*60 || *resp.TimeRemaining > 20*60 {
		t.Errorf("time remaining = %d, want ~1200", *resp.TimeRemaining)
	}
	if len(f.testRepo.fieldCalls) != 1 {
		t.Fatalf("expected one field update, got %d", len(f.testRepo.fieldCalls))
	}
	if f.testRepo.fieldCalls[0]["answered_count"] != 3 {
		t.Errorf("progress not written through: %+v", f.testRepo.fieldCalls[0])
	}
}

func TestCompleteCountInvariantAndPenalty(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 10)

	// 8 of 10 answered correctly, 2 never answered.
	correct := true
	for q := uint(1); q <= 8; q++ {
		f.answerRepo.Upsert(&model.Answer{TestID: test.ID, QuestionID: q, Status: model.AnswerCorrect, IsCorrect: &correct})
	}

	resp, err := f.svc.Complete(service.Caller{UserID: caller}, test.ID, dto.CompleteRequest{})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if got := resp.TotalCorrect + resp.TotalIncorrect + resp.TotalSkipped + resp.UnansweredCount; got != 10 {
		t.Errorf("count invariant broken: %d != 10", got)
	}
	if resp.Accuracy != 80.0 {
		t.Errorf("accuracy = %v, want 80", resp.Accuracy)
	}
	// applyIncompletePenalty=true, penalty=0.8, unanswered>0: 80 * 0.8 = 64.
	if resp.FinalScore != 64.0 {
		t.Errorf("final score = %v, want 64", resp.FinalScore)
	}
	if !resp.PenaltyApplied {
		t.Error("expected penalty_applied=true")
	}
	if resp.CompletionStatus != string(model.CompletionPartial) {
		t.Errorf("completion status = %s, want PARTIALLY_COMPLETED", resp.CompletionStatus)
	}
	if f.leaderboard.calls != 1 || f.leaderboard.score != 64.0 {
		t.Errorf("leaderboard push: calls=%d score=%v", f.leaderboard.calls, f.leaderboard.score)
	}
}

func TestCompleteFullyAnsweredNoPenalty(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 4)

	v := true
	w := false
	f.answerRepo.Upsert(&model.Answer{TestID: test.ID, QuestionID: 1, Status: model.AnswerCorrect, IsCorrect: &v})
	f.answerRepo.Upsert(&model.Answer{TestID: test.ID, QuestionID: 2, Status: model.AnswerCorrect, IsCorrect: &v})
	f.answerRepo.Upsert(&model.Answer{TestID: test.ID, QuestionID: 3, Status: model.AnswerIncorrect, IsCorrect: &w})
	f.answerRepo.Upsert(&model.Answer{TestID: test.ID, QuestionID: 4, Status: model.AnswerSkipped})

	resp, err := f.svc.Complete(service.Caller{UserID: caller}, test.ID, dto.CompleteRequest{})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if resp.PenaltyApplied {
		t.Error("no unanswered questions, penalty must not apply")
	}
	if resp.CompletionStatus != string(model.CompletionFull) {
		t.Errorf("completion status = %s, want FULLY_COMPLETED", resp.CompletionStatus)
	}
	if resp.FinalScore != 50.0 {
		t.Errorf("final score = %v, want 50", resp.FinalScore)
	}
}

func TestCompleteTwiceRejected(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 2)

	if _, err := f.svc.Complete(service.Caller{UserID: caller}, test.ID, dto.CompleteRequest{}); err != nil {
		t.Fatalf("first complete failed: %v", err)
	}
	_, err := f.svc.Complete(service.Caller{UserID: caller}, test.ID, dto.CompleteRequest{})
	se, ok := apperr.AsStateError(err)
	if !ok || se.Reason != apperr.ReasonTestCompleted {
		t.Fatalf("expected test_completed, got %v", err)
	}
}

func TestStatusSynthesis(t *testing.T) {
	f := newLifecycleFixture()

	active := f.seedTest(caller, model.TestStatusActive, 5)
	resp, err := f.svc.Status(service.Caller{UserID: caller}, active.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if resp.RecommendedAction != string(apperr.ActionNone) {
		t.Errorf("active test action = %s, want NONE", resp.RecommendedAction)
	}

	paused := f.seedTest(caller, model.TestStatusActive, 5)
	f.pausedSession(paused, time.Now().Add(10*time.Minute), 0)
	resp, err = f.svc.Status(service.Caller{UserID: caller}, paused.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !resp.CanResume || resp.RecommendedAction != string(apperr.ActionResume) {
		t.Errorf("resumable paused test: %+v", resp)
	}

	expired := f.seedTest(caller, model.TestStatusActive, 5)
	f.pausedSession(expired, time.Now().Add(-time.Minute), 0)
	resp, err = f.svc.Status(service.Caller{UserID: caller}, expired.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if resp.RecommendedAction != string(apperr.ActionRestart) {
		t.Errorf("expired paused test action = %s, want RESTART", resp.RecommendedAction)
	}

	done := f.seedTest(caller, model.TestStatusCompleted, 5)
	resp, err = f.svc.Status(service.Caller{UserID: caller}, done.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if resp.RecommendedAction != string(apperr.ActionReview) {
		t.Errorf("completed test action = %s, want REVIEW", resp.RecommendedAction)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	f := newLifecycleFixture()
	test := f.seedTest(caller, model.TestStatusActive, 5)

	_, err := f.svc.Status(service.Caller{UserID: caller + 1}, test.ID)
	if err != apperr.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	_, err = f.svc.Pause(service.Caller{UserID: caller + 1}, test.ID, dto.PauseRequest{})
	if err != apperr.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
