package repository

import (
	"context"

	"github.com/quotaguard/gateway/internal/models"
	"github.com/quotaguard/gateway/internal/storage"
	"gorm.io/gorm/clause"
)

type ProfileRepository struct {
	db *storage.Postgres
}

func NewProfileRepository(db *storage.Postgres) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert inserts or replaces a profile by name
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.RateLimitProfile) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

func (r *ProfileRepository) List(ctx context.Context) ([]models.RateLimitProfile, error) {
	var profiles []models.RateLimitProfile
	err := r.db.DB.WithContext(ctx).
		Order("name ASC").
		Find(&profiles).Error

	return profiles, err
}

func (r *ProfileRepository) Delete(ctx context.Context, name string) error {
	return r.db.DB.WithContext(ctx).
		Where("name = ?", name).
		Delete(&models.RateLimitProfile{}).Error
}
