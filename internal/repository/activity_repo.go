package repository

import (
	"context"

	"opsdesk/internal/model"

	"gorm.io/gorm"
)

// ActivityRepository is append-only: there is no update or delete.
type ActivityRepository interface {
	Append(ctx context.Context, entry *model.ActivityLog) error
	List(ctx context.Context, entityType string, offset, limit int) ([]model.ActivityLog, int64, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Append(ctx context.Context, entry *model.ActivityLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *activityRepository) List(ctx context.Context, entityType string, offset, limit int) ([]model.ActivityLog, int64, error) {
	var logs []model.ActivityLog
	var total int64

	query := GetDB(ctx, r.db).Model(&model.ActivityLog{})
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
