package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"curriplan/internal/model"
)

// CoTeachingRepository 合班组数据访问接口
type CoTeachingRepository interface {
	GetByKey(ctx context.Context, groupKey string) (*model.CoTeachingGroup, error)
	GetByPlanID(ctx context.Context, planID uint) (*model.CoTeachingGroup, error)
	Create(ctx context.Context, group *model.CoTeachingGroup, planIDs []uint) error
	AddPlans(ctx context.Context, groupID uint, planIDs []uint) error
	RemovePlans(ctx context.Context, groupID uint, planIDs []uint) error
	CountPlans(ctx context.Context, groupID uint) (int64, error)
	Delete(ctx context.Context, groupID uint) error
	ListRelated(ctx context.Context, subjectCode, termYear string) ([]model.CoTeachingGroup, error)
	ListByTerm(ctx context.Context, termYear string) ([]model.CoTeachingGroup, error)
}

type coTeachingRepo struct {
	db *gorm.DB
}

// NewCoTeachingRepo 创建 CoTeachingRepository 实例
func NewCoTeachingRepo(db *gorm.DB) CoTeachingRepository {
	return &coTeachingRepo{db: db}
}

// preloadPlans 成员计划按 plan_id 升序加载
func preloadPlans(db *gorm.DB) *gorm.DB {
	return db.Order("plans.plan_id ASC")
}

func (r *coTeachingRepo) GetByKey(ctx context.Context, groupKey string) (*model.CoTeachingGroup, error) {
	var group model.CoTeachingGroup
	err := r.db.WithContext(ctx).
		Preload("Plans", preloadPlans).
		Where("group_key = ?", groupKey).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *coTeachingRepo) GetByPlanID(ctx context.Context, planID uint) (*model.CoTeachingGroup, error) {
	var group model.CoTeachingGroup
	err := r.db.WithContext(ctx).
		Preload("Plans", preloadPlans).
		Where("group_id IN (?)",
			r.db.Model(&model.CoTeachingGroupPlan{}).Select("group_id").Where("plan_id = ?", planID),
		).
		Order("group_id ASC").
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// Create 创建合班组并写入初始成员
// 组键唯一约束冲突时返回 gorm.ErrDuplicatedKey（需开启 TranslateError）
func (r *coTeachingRepo) Create(ctx context.Context, group *model.CoTeachingGroup, planIDs []uint) error {
	if err := r.db.WithContext(ctx).Omit("Plans").Create(group).Error; err != nil {
		return err
	}
	return r.AddPlans(ctx, group.GroupID, planIDs)
}

// AddPlans 幂等地添加成员，已存在的 (group_id, plan_id) 忽略
func (r *coTeachingRepo) AddPlans(ctx context.Context, groupID uint, planIDs []uint) error {
	if len(planIDs) == 0 {
		return nil
	}
	rows := make([]model.CoTeachingGroupPlan, 0, len(planIDs))
	for _, id := range planIDs {
		rows = append(rows, model.CoTeachingGroupPlan{GroupID: groupID, PlanID: id})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *coTeachingRepo) RemovePlans(ctx context.Context, groupID uint, planIDs []uint) error {
	if len(planIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("group_id = ? AND plan_id IN ?", groupID, planIDs).
		Delete(&model.CoTeachingGroupPlan{}).Error
}

// CountPlans 统计组内仍有效（未软删除）的成员数
func (r *coTeachingRepo) CountPlans(ctx context.Context, groupID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CoTeachingGroupPlan{}).
		Joins("JOIN plans ON plans.plan_id = co_teaching_group_plans.plan_id AND plans.deleted_at IS NULL").
		Where("co_teaching_group_plans.group_id = ?", groupID).
		Count(&count).Error
	return count, err
}

// Delete 硬删除合班组及其全部成员关系
func (r *coTeachingRepo) Delete(ctx context.Context, groupID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).
			Delete(&model.CoTeachingGroupPlan{}).Error; err != nil {
			return err
		}
		return tx.Where("group_id = ?", groupID).
			Delete(&model.CoTeachingGroup{}).Error
	})
}

// ListRelated 查找与科目/学期相关的所有合班组，三条规则取并集：
//  1. 组内包含 subject_code + term_year 匹配的计划
//  2. 组键以 "<subjectCode>-" 开头
//  3. 组键包含 "/<termYear>"
func (r *coTeachingRepo) ListRelated(ctx context.Context, subjectCode, termYear string) ([]model.CoTeachingGroup, error) {
	var groups []model.CoTeachingGroup

	memberOf := r.db.Model(&model.CoTeachingGroupPlan{}).
		Select("co_teaching_group_plans.group_id").
		Joins("JOIN plans ON plans.plan_id = co_teaching_group_plans.plan_id").
		Where("plans.subject_code = ? AND plans.term_year = ?", subjectCode, termYear)

	err := r.db.WithContext(ctx).
		Preload("Plans", preloadPlans).
		Where("group_id IN (?)", memberOf).
		Or("group_key LIKE ?", escapeLike(subjectCode)+"-%").
		Or("group_key LIKE ?", "%/"+escapeLike(termYear)+"%").
		Order("group_id ASC").
		Find(&groups).Error
	return groups, err
}

// ListByTerm 列出成员计划属于指定学期的合班组
func (r *coTeachingRepo) ListByTerm(ctx context.Context, termYear string) ([]model.CoTeachingGroup, error) {
	var groups []model.CoTeachingGroup

	memberOf := r.db.Model(&model.CoTeachingGroupPlan{}).
		Select("co_teaching_group_plans.group_id").
		Joins("JOIN plans ON plans.plan_id = co_teaching_group_plans.plan_id AND plans.deleted_at IS NULL").
		Where("plans.term_year = ?", termYear)

	err := r.db.WithContext(ctx).
		Preload("Plans", preloadPlans).
		Where("group_id IN (?)", memberOf).
		Order("group_key ASC").
		Find(&groups).Error
	return groups, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike 转义 LIKE 通配符，科目代码中的 "_" 按字面匹配
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
