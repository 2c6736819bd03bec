package service_test

import (
	"context"
	"time"

	"github.com/tdhoang/prepwise/internal/model"
	"github.com/tdhoang/prepwise/internal/repository"
	"gorm.io/gorm"
)

// In-memory repository fakes, enough state to drive the services.

type fakeTestRepo struct {
	tests        map[uint]*model.Test
	testQuestion map[uint]map[uint]bool
	nextID       uint
	updateCalls  int
	fieldCalls   []map[string]interface{}
}

func newFakeTestRepo() *fakeTestRepo {
	return &fakeTestRepo{
		tests:        make(map[uint]*model.Test),
		testQuestion: make(map[uint]map[uint]bool),
		nextID:       1,
	}
}

func (r *fakeTestRepo) add(test *model.Test) *model.Test {
	if test.ID == 0 {
		test.ID = r.nextID
		r.nextID++
	}
	r.tests[test.ID] = test
	return test
}

func (r *fakeTestRepo) link(testID uint, questionIDs ...uint) {
	if r.testQuestion[testID] == nil {
		r.testQuestion[testID] = make(map[uint]bool)
	}
	for _, q := range questionIDs {
		r.testQuestion[testID][q] = true
	}
}

func (r *fakeTestRepo) Create(tx *gorm.DB, test *model.Test) error {
	r.add(test)
	for _, tq := range test.Questions {
		r.link(test.ID, tq.QuestionID)
	}
	return nil
}

func (r *fakeTestRepo) FindByID(id uint) (*model.Test, error) {
	test, ok := r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return test, nil
}

func (r *fakeTestRepo) FindByIDWithQuestions(id uint) (*model.Test, error) {
	return r.FindByID(id)
}

func (r *fakeTestRepo) HasQuestion(testID, questionID uint) (bool, error) {
	return r.testQuestion[testID][questionID], nil
}

func (r *fakeTestRepo) Update(test *model.Test) error {
	r.updateCalls++
	r.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) UpdateFields(testID uint, fields map[string]interface{}) error {
	r.fieldCalls = append(r.fieldCalls, fields)
	return nil
}

type fakeQuestionRepo struct {
	questions map[uint]*model.Question
	pool      []model.Question
	attempts  map[uint]int
	correct   map[uint]int
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{
		questions: make(map[uint]*model.Question),
		attempts:  make(map[uint]int),
		correct:   make(map[uint]int),
	}
}

func (r *fakeQuestionRepo) Sample(filters repository.QuestionFilters, limit int) ([]model.Question, error) {
	if limit > len(r.pool) {
		limit = len(r.pool)
	}
	return append([]model.Question(nil), r.pool[:limit]...), nil
}

func (r *fakeQuestionRepo) FindByIDWithOptions(id uint) (*model.Question, error) {
	q, ok := r.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return q, nil
}

func (r *fakeQuestionRepo) IncrementAttempts(questionID uint, correct bool) error {
	r.attempts[questionID]++
	if correct {
		r.correct[questionID]++
	}
	return nil
}

type answerKey struct {
	testID, questionID uint
}

type fakeAnswerRepo struct {
	answers map[answerKey]*model.Answer
	nextID  uint
}

func newFakeAnswerRepo() *fakeAnswerRepo {
	return &fakeAnswerRepo{answers: make(map[answerKey]*model.Answer), nextID: 1}
}

func (r *fakeAnswerRepo) Upsert(answer *model.Answer) error {
	key := answerKey{answer.TestID, answer.QuestionID}
	if existing, ok := r.answers[key]; ok {
		answer.ID = existing.ID
	} else {
		answer.ID = r.nextID
		r.nextID++
	}
	stored := *answer
	r.answers[key] = &stored
	return nil
}

func (r *fakeAnswerRepo) FindByTestAndQuestion(testID, questionID uint) (*model.Answer, error) {
	answer, ok := r.answers[answerKey{testID, questionID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return answer, nil
}

func (r *fakeAnswerRepo) FindByTest(testID uint) ([]model.Answer, error) {
	var out []model.Answer
	for key, a := range r.answers {
		if key.testID == testID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAnswerRepo) Tally(testID uint) (repository.AnswerTally, error) {
	var tally repository.AnswerTally
	for key, a := range r.answers {
		if key.testID != testID {
			continue
		}
		switch a.Status {
		case model.AnswerCorrect:
			tally.Correct++
		case model.AnswerIncorrect:
			tally.Incorrect++
		case model.AnswerSkipped:
			tally.Skipped++
		}
	}
	tally.Answered = tally.Correct + tally.Incorrect
	return tally, nil
}

type fakeScoreRepo struct {
	scores      map[uint]*model.QuestionScore // by answer ID
	todayCount  int                           // correct answers recorded outside the fixture's tests
	upsertCalls int
	deleteCalls int
}

func newFakeScoreRepo() *fakeScoreRepo {
	return &fakeScoreRepo{scores: make(map[uint]*model.QuestionScore)}
}

func (r *fakeScoreRepo) UpsertForAnswer(score *model.QuestionScore) error {
	r.upsertCalls++
	if existing, ok := r.scores[score.AnswerID]; ok {
		score.ID = existing.ID
	} else {
		score.ID = uint(len(r.scores) + 1)
	}
	stored := *score
	r.scores[score.AnswerID] = &stored
	return nil
}

func (r *fakeScoreRepo) DeleteForAnswer(answerID uint) error {
	r.deleteCalls++
	delete(r.scores, answerID)
	return nil
}

func (r *fakeScoreRepo) CountCorrectSince(userID uint, since time.Time, excludeAnswerID uint) (int, error) {
	n := r.todayCount
	for answerID, s := range r.scores {
		if answerID != excludeAnswerID && s.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeScoreRepo) SumPointsForTest(testID uint) (int, error) {
	total := 0
	for _, s := range r.scores {
		total += s.TotalPoints
	}
	return total, nil
}

type fakeSessionRepo struct {
	sessions map[uint][]*model.TestSession // by test ID, creation order
	events   []*model.StatusEvent
	nextID   uint
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uint][]*model.TestSession), nextID: 1}
}

func (r *fakeSessionRepo) Create(tx *gorm.DB, session *model.TestSession) error {
	session.ID = r.nextID
	r.nextID++
	r.sessions[session.TestID] = append(r.sessions[session.TestID], session)
	return nil
}

func (r *fakeSessionRepo) Update(session *model.TestSession) error {
	return nil
}

func (r *fakeSessionRepo) Latest(testID uint) (*model.TestSession, error) {
	list := r.sessions[testID]
	if len(list) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return list[len(list)-1], nil
}

func (r *fakeSessionRepo) NextSessionNumber(testID uint) (int, error) {
	max := 0
	for _, s := range r.sessions[testID] {
		if s.SessionNumber > max {
			max = s.SessionNumber
		}
	}
	return max + 1, nil
}

func (r *fakeSessionRepo) AppendEvent(event *model.StatusEvent) error {
	r.events = append(r.events, event)
	return nil
}

type fakeUserRepo struct {
	users map[uint]bool
}

func (r *fakeUserRepo) Exists(userID uint) (bool, error) {
	return r.users[userID], nil
}

type fakeLeaderboard struct {
	calls int
	score float64
}

func (r *fakeLeaderboard) RecordCompletion(ctx context.Context, userID uint, score float64, totalCorrect int, completedAt time.Time) error {
	r.calls++
	r.score = score
	return nil
}
