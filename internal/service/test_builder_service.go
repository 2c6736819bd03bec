package service

import (
	"errors"
	"fmt"
	"math/rand"
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

const (
	minQuestionCount = 1
	maxQuestionCount = 100

	// Over-fetch factor for sampling: pull twice the requested count before
	// shuffling so the truncation has slack.
	sampleOverfetch = 2
)

// TestBuilderService builds new tests: validates filters, samples questions,
// persists the test with its initial session, and returns a client-safe
// question set.
type TestBuilderService interface {
	CreateTest(caller Caller, req dto.CreateTestRequest) (*dto.CreateTestResponse, error)
	GetTestDetail(caller Caller, testID uint) (*dto.TestDetailResponse, error)
}

type testBuilderService struct {
	testRepo     repository.TestRepository
	questionRepo repository.QuestionRepository
	sessionRepo  repository.SessionRepository
	userRepo     repository.UserRepository
	maxResume    int
	db           *gorm.DB
}

func NewTestBuilderService(
	testRepo repository.TestRepository,
	questionRepo repository.QuestionRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	maxResume int,
	db *gorm.DB,
) TestBuilderService {
	return &testBuilderService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
		maxResume:    maxResume,
		db:           db,
	}
}

func (s *testBuilderService) CreateTest(caller Caller, req dto.CreateTestRequest) (*dto.CreateTestResponse, error) {
	if req.QuestionCount < minQuestionCount || req.QuestionCount > maxQuestionCount {
		return nil, fmt.Errorf("%w: question_count must be between %d and %d",
			apperr.ErrValidation, minQuestionCount, maxQuestionCount)
	}

	filters := repository.QuestionFilters{
		Subjects: req.Filters.Subjects,
		Topics:   req.Filters.Topics,
		Systems:  req.Filters.Systems,
	}
	if req.Filters.Difficulty != nil {
		d := model.Difficulty(*req.Filters.Difficulty)
		filters.Difficulty = &d
	}
	if filters.Empty() {
		return nil, fmt.Errorf("%w: at least one of subjects, topics or systems is required", apperr.ErrValidation)
	}

	exists, err := s.userRepo.Exists(caller.UserID)
	if err != nil {
		log.Error().Err(err).Uint("userID", caller.UserID).Msg("CreateTest: user lookup failed")
		return nil, fmt.Errorf("error checking user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, caller.UserID)
	}

	candidates, err := s.questionRepo.Sample(filters, req.QuestionCount*sampleOverfetch)
	if err != nil {
		log.Error().Err(err).Msg("CreateTest: question sampling failed")
		return nil, fmt.Errorf("error sampling questions: %w", err)
	}
	if len(candidates) < req.QuestionCount {
		return nil, fmt.Errorf("%w: requested %d, pool has %d",
			apperr.ErrInsufficientPool, req.QuestionCount, len(candidates))
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	selected := candidates[:req.QuestionCount]

	now := time.Now()
	test := model.Test{
		UserID:          caller.UserID,
		Status:          model.TestStatusActive,
		Mode:            model.TestMode(req.Mode),
		TotalQuestions:  req.QuestionCount,
		TimeLimit:       req.TimeLimit,
		UnansweredCount: req.QuestionCount,
		SessionToken:    uuid.NewString(),
		StartedAt:       now,
		LastActivityAt:  now,
		AttemptNumber:   1,
	}
	for i, q := range selected {
		test.Questions = append(test.Questions, model.TestQuestion{
			QuestionID:   q.ID,
			DisplayOrder: i + 1,
		})
	}

	persist := func(tx *gorm.DB) error {
		if err := s.testRepo.Create(tx, &test); err != nil {
			return fmt.Errorf("failed to create test: %w", err)
		}
		session := model.TestSession{
			TestID:            test.ID,
			UserID:            caller.UserID,
			SessionNumber:     1,
			StartedAt:         now,
			MaxResumeAttempts: s.maxResume,
		}
		if err := s.sessionRepo.Create(tx, &session); err != nil {
			return fmt.Errorf("failed to create initial session: %w", err)
		}
		return nil
	}
	// Without a db handle there is no transaction demarcation; repositories
	// are exercised directly.
	if s.db != nil {
		err = s.db.Transaction(persist)
	} else {
		err = persist(nil)
	}
	if err != nil {
		log.Error().Err(err).Uint("userID", caller.UserID).Msg("CreateTest: transaction failed")
		return nil, err
	}

	log.Info().Uint("testID", test.ID).Uint("userID", caller.UserID).
		Int("questionCount", req.QuestionCount).Str("mode", req.Mode).Msg("Test created")

	resp := dto.CreateTestResponse{
		TestID:         test.ID,
		SessionToken:   test.SessionToken,
		Mode:           string(test.Mode),
		TimeLimit:      test.TimeLimit,
		TotalQuestions: test.TotalQuestions,
		StartedAt:      test.StartedAt,
	}
	for i, q := range selected {
		resp.Questions = append(resp.Questions, toQuestionDTO(q, i+1))
	}
	return &resp, nil
}

func (s *testBuilderService) GetTestDetail(caller Caller, testID uint) (*dto.TestDetailResponse, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: test %d", apperr.ErrNotFound, testID)
		}
		return nil, fmt.Errorf("error fetching test %d: %w", testID, err)
	}
	if test.UserID != caller.UserID {
		return nil, apperr.ErrNotOwner
	}

	resp := dto.TestDetailResponse{
		TestID:         test.ID,
		Status:         string(test.Status),
		Mode:           string(test.Mode),
		TimeLimit:      test.TimeLimit,
		TotalQuestions: test.TotalQuestions,
		AnsweredCount:  test.AnsweredCount,
		SkippedCount:   test.SkippedCount,
		StartedAt:      test.StartedAt,
	}
	for _, tq := range test.Questions {
		resp.Questions = append(resp.Questions, toQuestionDTO(tq.Question, tq.DisplayOrder))
	}
	return &resp, nil
}

// toQuestionDTO maps a question for client display. OptionDTO has no
// correctness field, so copier cannot leak it.
func toQuestionDTO(q model.Question, displayOrder int) dto.QuestionDTO {
	var out dto.QuestionDTO
	copier.Copy(&out, &q)
	out.DisplayOrder = displayOrder
	out.Options = make([]dto.OptionDTO, len(q.Options))
	for i, opt := range q.Options {
		copier.Copy(&out.Options[i], &opt)
	}
	return out
}
