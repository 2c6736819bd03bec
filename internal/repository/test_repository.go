package repository

import (
	"github.com/tdhoang/prepwise/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(tx *gorm.DB, test *model.Test) error
	FindByID(id uint) (*model.Test, error)
	FindByIDWithQuestions(id uint) (*model.Test, error)
	HasQuestion(testID, questionID uint) (bool, error)
	Update(test *model.Test) error
	UpdateFields(testID uint, fields map[string]interface{}) error
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

// Create persists the test inside the caller's transaction. GORM creates the
// associated TestQuestion rows from test.Questions in the same insert.
func (r *testRepository) Create(tx *gorm.DB, test *model.Test) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(test).Error
}

func (r *testRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	if err := r.db.First(&test, id).Error; err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) FindByIDWithQuestions(id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_questions.display_order ASC")
		}).
		Preload("Questions.Question").
		Preload("Questions.Question.Options").
		First(&test, id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *testRepository) HasQuestion(testID, questionID uint) (bool, error) {
	var n int64
	err := r.db.Model(&model.TestQuestion{}).
		Where("test_id = ? AND question_id = ?", testID, questionID).
		Count(&n).Error
	return n > 0, err
}

func (r *testRepository) Update(test *model.Test) error {
	return r.db.Save(test).Error
}

// UpdateFields applies a partial update, used by write-through counter and
// timestamp refreshes where a full Save would clobber concurrent columns.
func (r *testRepository) UpdateFields(testID uint, fields map[string]interface{}) error {
	return r.db.Model(&model.Test{}).Where("id = ?", testID).Updates(fields).Error
}
