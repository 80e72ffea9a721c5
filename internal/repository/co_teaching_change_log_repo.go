package repository

import (
	"context"

	"gorm.io/gorm"

	"curriplan/internal/model"
)

// CoTeachingChangeLogRepository 合班变更日志数据访问接口
type CoTeachingChangeLogRepository interface {
	Create(ctx context.Context, log *model.CoTeachingChangeLog) error
	List(ctx context.Context, groupKey string, offset, limit int) ([]model.CoTeachingChangeLog, int64, error)
}

type coTeachingChangeLogRepo struct {
	db *gorm.DB
}

// NewCoTeachingChangeLogRepo 创建 CoTeachingChangeLogRepository 实例
func NewCoTeachingChangeLogRepo(db *gorm.DB) CoTeachingChangeLogRepository {
	return &coTeachingChangeLogRepo{db: db}
}

func (r *coTeachingChangeLogRepo) Create(ctx context.Context, log *model.CoTeachingChangeLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *coTeachingChangeLogRepo) List(ctx context.Context, groupKey string, offset, limit int) ([]model.CoTeachingChangeLog, int64, error) {
	var logs []model.CoTeachingChangeLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.CoTeachingChangeLog{})
	if groupKey != "" {
		db = db.Where("group_key = ?", groupKey)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC, change_log_id DESC").
		Find(&logs).Error
	return logs, total, err
}
