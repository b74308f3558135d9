package repository

import (
	"context"
	"errors"
	"time"

	"github.com/banklabs/banklink/internal/merchant/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type merchantRepo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &merchantRepo{db: db}
}

func (r *merchantRepo) FindByUID(ctx context.Context, uid string) (*domain.Merchant, error) {
	var m domain.Merchant
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *merchantRepo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Merchant, error) {
	var m domain.Merchant
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *merchantRepo) Touch(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Merchant{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}
