package repository

import (
	"github.com/rs/zerolog/log"
	"github.com/tdhoang/prepwise/internal/model"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(tx *gorm.DB, session *model.TestSession) error
	Update(session *model.TestSession) error
	// Latest returns the most recently created session for a test, the
	// last-write-wins view used to reconstruct current session state.
	Latest(testID uint) (*model.TestSession, error)
	NextSessionNumber(testID uint) (int, error)
	// AppendEvent writes a status audit entry. Best-effort: callers treat a
	// failure here as non-fatal for the primary operation.
	AppendEvent(event *model.StatusEvent) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(tx *gorm.DB, session *model.TestSession) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(session).Error
}

func (r *sessionRepository) Update(session *model.TestSession) error {
	return r.db.Save(session).Error
}

func (r *sessionRepository) Latest(testID uint) (*model.TestSession, error) {
	var session model.TestSession
	err := r.db.Where("test_id = ?", testID).
		Order("session_number DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// NextSessionNumber returns max(session_number)+1 for the test. Session
// numbers are strictly increasing and never reused.
func (r *sessionRepository) NextSessionNumber(testID uint) (int, error) {
	var max int64
	err := r.db.Model(&model.TestSession{}).
		Where("test_id = ?", testID).
		Select("COALESCE(MAX(session_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return int(max) + 1, nil
}

func (r *sessionRepository) AppendEvent(event *model.StatusEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		log.Warn().Err(err).Uint("testID", event.TestID).Str("eventType", string(event.EventType)).
			Msg("Failed to append status event")
		return err
	}
	return nil
}
