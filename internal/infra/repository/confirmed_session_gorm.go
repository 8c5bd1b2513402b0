package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type confirmedSessionGormRepository struct {
	db *gorm.DB
}

func NewConfirmedSessionGormRepository(db *gorm.DB) repo.ConfirmedSessionRepository {
	return &confirmedSessionGormRepository{db: db}
}

func (r *confirmedSessionGormRepository) FindBySessionID(ctx context.Context, sessionID string) (model.ConfirmedSession, error) {
	var s model.ConfirmedSession

	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ConfirmedSession{}, repo.ErrNotFound
	}
	if err != nil {
		return model.ConfirmedSession{}, err
	}
	return s, nil
}

// 同じセッションが先に記録されていたら何もしない
func (r *confirmedSessionGormRepository) Save(ctx context.Context, s model.ConfirmedSession) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&s).Error; err != nil {
		return err
	}
	return nil
}
