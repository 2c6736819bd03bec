package repository

import (
	"errors"

	"github.com/tdhoang/prepwise/internal/model"
	"gorm.io/gorm"
)

// UserRepository is the identity-service boundary: the orchestrator only needs
// an existence check.
type UserRepository interface {
	Exists(userID uint) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Exists(userID uint) (bool, error) {
	var user model.User
	err := r.db.Select("id").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
