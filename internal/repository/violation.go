package repository

import (
	"context"
	"time"

	"github.com/quotaguard/gateway/internal/models"
	"github.com/quotaguard/gateway/internal/storage"
)

type ViolationRepository struct {
	db *storage.Postgres
}

func NewViolationRepository(db *storage.Postgres) *ViolationRepository {
	return &ViolationRepository{db: db}
}

// CreateBatch inserts a batch of violations in one statement
func (r *ViolationRepository) CreateBatch(ctx context.Context, violations []models.Violation) error {
	if len(violations) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&violations).Error
}

// Recent returns the newest violations, capped at limit
func (r *ViolationRepository) Recent(ctx context.Context, limit int) ([]models.Violation, error) {
	if limit <= 0 {
		limit = 100
	}

	var violations []models.Violation
	err := r.db.DB.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&violations).Error

	return violations, err
}

// CheckSummary is an aggregate of denials per failed check.
type CheckSummary struct {
	FailedCheck string `json:"failed_check"`
	Count       int64  `json:"count"`
}

// SummarySince groups violations after the cutoff by failed check
func (r *ViolationRepository) SummarySince(ctx context.Context, cutoff time.Time) ([]CheckSummary, error) {
	var summaries []CheckSummary
	err := r.db.DB.WithContext(ctx).
		Model(&models.Violation{}).
		Select("failed_check, COUNT(*) as count").
		Where("timestamp >= ?", cutoff).
		Group("failed_check").
		Order("count DESC").
		Scan(&summaries).Error

	return summaries, err
}

// DeleteBefore prunes violations older than the cutoff
func (r *ViolationRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&models.Violation{})

	return result.RowsAffected, result.Error
}
