package repository

import (
	"context"

	"gorm.io/gorm"

	"curriplan/internal/model"
	pkgerrors "curriplan/pkg/errors"
)

// PlanFilter 计划列表筛选条件，零值字段不参与过滤
type PlanFilter struct {
	SubjectCode string
	TermYear    string
	PlanTypes   []string
	YearLevel   *int
	Offset      int
	Limit       int
}

// PlanRepository 开课计划数据访问接口
type PlanRepository interface {
	Create(ctx context.Context, plan *model.Plan) error
	GetByID(ctx context.Context, id uint) (*model.Plan, error)
	ListByIDs(ctx context.Context, ids []uint) ([]model.Plan, error)
	List(ctx context.Context, filter PlanFilter) ([]model.Plan, int64, error)
	Update(ctx context.Context, plan *model.Plan) error
	Delete(ctx context.Context, id uint, deletedBy string) error
}

type planRepo struct {
	db *gorm.DB
}

// NewPlanRepo 创建 PlanRepository 实例
func NewPlanRepo(db *gorm.DB) PlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) Create(ctx context.Context, plan *model.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *planRepo) GetByID(ctx context.Context, id uint) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Where("plan_id = ?", id).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepo) ListByIDs(ctx context.Context, ids []uint) ([]model.Plan, error) {
	var plans []model.Plan
	if len(ids) == 0 {
		return plans, nil
	}
	err := r.db.WithContext(ctx).
		Where("plan_id IN ?", ids).
		Order("plan_id ASC").
		Find(&plans).Error
	return plans, err
}

func (r *planRepo) List(ctx context.Context, filter PlanFilter) ([]model.Plan, int64, error) {
	var plans []model.Plan
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Plan{})
	if filter.SubjectCode != "" {
		db = db.Where("subject_code = ?", filter.SubjectCode)
	}
	if filter.TermYear != "" {
		db = db.Where("term_year = ?", filter.TermYear)
	}
	if len(filter.PlanTypes) > 0 {
		db = db.Where("plan_type IN ?", filter.PlanTypes)
	}
	if filter.YearLevel != nil {
		db = db.Where("year_level = ?", *filter.YearLevel)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		db = db.Offset(filter.Offset).Limit(filter.Limit)
	}
	err := db.Order("subject_code ASC, plan_id ASC").Find(&plans).Error
	return plans, total, err
}

func (r *planRepo) Update(ctx context.Context, plan *model.Plan) error {
	oldVersion := plan.Version
	result := r.db.WithContext(ctx).
		Model(plan).
		Where("plan_id = ? AND version = ?", plan.PlanID, oldVersion).
		Updates(map[string]interface{}{
			"subject_code": plan.SubjectCode,
			"subject_name": plan.SubjectName,
			"term_year":    plan.TermYear,
			"plan_type":    plan.PlanType,
			"year_level":   plan.YearLevel,
			"updated_by":   plan.UpdatedBy,
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	plan.Version = oldVersion + 1
	return nil
}

func (r *planRepo) Delete(ctx context.Context, id uint, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Plan{}).
		Where("plan_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
