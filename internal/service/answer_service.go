package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tdhoang/prepwise/internal/apperr"
	"github.com/tdhoang/prepwise/internal/dto"
	"github.com/tdhoang/prepwise/internal/model"
	"github.com/tdhoang/prepwise/internal/repository"
	"github.com/tdhoang/prepwise/internal/scoring"
	"gorm.io/gorm"
)

// AnswerService is the answer ledger: idempotent upsert of a response keyed by
// (test, question), correctness derivation, and points computation for
// correct answers.
type AnswerService interface {
	SubmitAnswer(caller Caller, testID uint, req dto.SubmitAnswerRequest) (*dto.SubmitAnswerResponse, error)
}

type answerService struct {
	testRepo     repository.TestRepository
	questionRepo repository.QuestionRepository
	answerRepo   repository.AnswerRepository
	scoreRepo    repository.ScoreRepository
}

func NewAnswerService(
	testRepo repository.TestRepository,
	questionRepo repository.QuestionRepository,
	answerRepo repository.AnswerRepository,
	scoreRepo repository.ScoreRepository,
) AnswerService {
	return &answerService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		scoreRepo:    scoreRepo,
	}
}

func (s *answerService) SubmitAnswer(caller Caller, testID uint, req dto.SubmitAnswerRequest) (*dto.SubmitAnswerResponse, error) {
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
	if test.Status == model.TestStatusCompleted {
		return nil, apperr.NewStateError(apperr.ReasonTestCompleted, apperr.ActionReview,
			"test is already completed")
	}

	inTest, err := s.testRepo.HasQuestion(testID, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("error checking test membership: %w", err)
	}
	if !inTest {
		return nil, apperr.NewStateError(apperr.ReasonQuestionNotInTest, apperr.ActionNone,
			fmt.Sprintf("question %d is not part of test %d", req.QuestionID, testID))
	}

	now := time.Now()
	answer := model.Answer{
		TestID:     testID,
		QuestionID: req.QuestionID,
		TimeSpent:  req.TimeSpent,
		AnsweredAt: now,
	}

	var question *model.Question
	if req.SelectedOptionID == nil {
		answer.Status = model.AnswerSkipped
	} else {
		question, err = s.questionRepo.FindByIDWithOptions(req.QuestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: question %d", apperr.ErrNotFound, req.QuestionID)
			}
			return nil, fmt.Errorf("error fetching question %d: %w", req.QuestionID, err)
		}

		var option *model.Option
		for i := range question.Options {
			if question.Options[i].ID == *req.SelectedOptionID {
				option = &question.Options[i]
				break
			}
		}
		if option == nil {
			return nil, fmt.Errorf("%w: option %d for question %d", apperr.ErrNotFound, *req.SelectedOptionID, req.QuestionID)
		}

		correct := option.IsCorrect
		answer.SelectedOptionID = req.SelectedOptionID
		answer.IsCorrect = &correct
		if correct {
			answer.Status = model.AnswerCorrect
		} else {
			answer.Status = model.AnswerIncorrect
		}
	}

	if err := s.answerRepo.Upsert(&answer); err != nil {
		log.Error().Err(err).Uint("testID", testID).Uint("questionID", req.QuestionID).
			Msg("SubmitAnswer: upsert failed")
		return nil, fmt.Errorf("error saving answer: %w", err)
	}

	// Re-read for the persisted row ID; the upsert path does not populate it
	// when the conflict branch fires.
	persisted, err := s.answerRepo.FindByTestAndQuestion(testID, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("error reloading answer: %w", err)
	}

	points := 0
	if answer.Status == model.AnswerCorrect {
		// The streak counts earlier same-day correct answers only. Excluding
		// this answer's own row keeps resubmission of the same option at the
		// same point total.
		streak, err := s.scoreRepo.CountCorrectSince(caller.UserID, repository.StartOfUTCDay(now), persisted.ID)
		if err != nil {
			log.Error().Err(err).Uint("userID", caller.UserID).Msg("SubmitAnswer: streak count failed")
			return nil, fmt.Errorf("error computing streak: %w", err)
		}
		breakdown := scoring.Points(question.Difficulty, req.TimeSpent, test.TimeLimit, streak)
		score := model.QuestionScore{
			AnswerID:         persisted.ID,
			UserID:           caller.UserID,
			BasePoints:       breakdown.BasePoints,
			Difficulty:       question.Difficulty,
			TimeBonus:        breakdown.TimeBonus,
			StreakMultiplier: breakdown.StreakMultiplier,
			TotalPoints:      breakdown.TotalPoints,
		}
		if err := s.scoreRepo.UpsertForAnswer(&score); err != nil {
			log.Error().Err(err).Uint("answerID", persisted.ID).Msg("SubmitAnswer: score upsert failed")
			return nil, fmt.Errorf("error saving score: %w", err)
		}
		points = breakdown.TotalPoints
	} else {
		// A score row may only exist for a correct answer. A verdict flip
		// away from correct drops the earlier one.
		if err := s.scoreRepo.DeleteForAnswer(persisted.ID); err != nil {
			log.Error().Err(err).Uint("answerID", persisted.ID).Msg("SubmitAnswer: stale score delete failed")
			return nil, fmt.Errorf("error clearing score: %w", err)
		}
	}

	// Secondary writes: question analytics counters and the write-through
	// progress cache on the test. Failures here are logged, not surfaced.
	if req.SelectedOptionID != nil {
		if err := s.questionRepo.IncrementAttempts(req.QuestionID, answer.Status == model.AnswerCorrect); err != nil {
			log.Warn().Err(err).Uint("questionID", req.QuestionID).Msg("SubmitAnswer: attempt counter update failed")
		}
	}
	s.refreshTestCounters(test, now)

	var isCorrect *bool
	if answer.IsCorrect != nil {
		v := *answer.IsCorrect
		isCorrect = &v
	}
	return &dto.SubmitAnswerResponse{
		QuestionID: req.QuestionID,
		Status:     string(answer.Status),
		IsCorrect:  isCorrect,
		Points:     points,
	}, nil
}

func (s *answerService) refreshTestCounters(test *model.Test, now time.Time) {
	tally, err := s.answerRepo.Tally(test.ID)
	if err != nil {
		log.Warn().Err(err).Uint("testID", test.ID).Msg("SubmitAnswer: tally failed, counters stale")
		return
	}
	unanswered := test.TotalQuestions - tally.Answered - tally.Skipped
	if unanswered < 0 {
		unanswered = 0
	}
	err = s.testRepo.UpdateFields(test.ID, map[string]interface{}{
		"answered_count":   tally.Answered,
		"skipped_count":    tally.Skipped,
		"unanswered_count": unanswered,
		"last_activity_at": now,
	})
	if err != nil {
		log.Warn().Err(err).Uint("testID", test.ID).Msg("SubmitAnswer: counter refresh failed")
	}
}
