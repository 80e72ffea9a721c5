package model

import (
	"time"

	"gorm.io/datatypes"
)

// 合班变更动作
const (
	CoTeachingActionMerge     = "merge"
	CoTeachingActionUnmerge   = "unmerge"
	CoTeachingActionSplit     = "split"
	CoTeachingActionMergeBack = "merge_back"
)

// CoTeachingGroup 合班组表 — 对应 co_teaching_groups
// 成员为空的组不允许存在，由 Service 层在移除成员后立即删除
type CoTeachingGroup struct {
	GroupID  uint   `gorm:"primaryKey;autoIncrement"                 json:"group_id"`
	GroupKey string `gorm:"type:varchar(128);not null;uniqueIndex"   json:"group_key"`
	BaseModel

	// 关联
	Plans []Plan `gorm:"many2many:co_teaching_group_plans;foreignKey:GroupID;joinForeignKey:GroupID;references:PlanID;joinReferences:PlanID" json:"plans,omitempty"`
}

// TableName 指定表名
func (CoTeachingGroup) TableName() string { return "co_teaching_groups" }

// PlanIDs 返回组内计划 ID（保持 Plans 的顺序）
func (g *CoTeachingGroup) PlanIDs() []uint {
	ids := make([]uint, 0, len(g.Plans))
	for i := range g.Plans {
		ids = append(ids, g.Plans[i].PlanID)
	}
	return ids
}

// CoTeachingGroupPlan 合班组成员连接表 — 对应 co_teaching_group_plans
type CoTeachingGroupPlan struct {
	GroupID   uint      `gorm:"primaryKey"                         json:"group_id"`
	PlanID    uint      `gorm:"primaryKey"                         json:"plan_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (CoTeachingGroupPlan) TableName() string { return "co_teaching_group_plans" }

// CoTeachingChangeLog 合班变更记录表 — 对应 co_teaching_change_logs（纯审计日志）
type CoTeachingChangeLog struct {
	ChangeLogID uint           `gorm:"primaryKey;autoIncrement"           json:"change_log_id"`
	Action      string         `gorm:"type:varchar(20);not null"          json:"action"` // merge | unmerge | split | merge_back
	GroupKey    string         `gorm:"type:varchar(128);not null"         json:"group_key"`
	PlanIDs     IntArray       `gorm:"type:int[];not null"                json:"plan_ids"`
	Detail      datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"   json:"detail"`
	OperatorID  string         `gorm:"type:varchar(64);not null"          json:"operator_id"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (CoTeachingChangeLog) TableName() string { return "co_teaching_change_logs" }
