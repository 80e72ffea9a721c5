package dto

// ── 合班模块 DTO ──

// CoTeachingLookupResponse 计划所在合班组
// 计划未合班时 GroupKey 为 null，PlanIDs / Details 为空数组
type CoTeachingLookupResponse struct {
	GroupKey *string               `json:"group_key"`
	PlanIDs  []uint                `json:"plan_ids"`
	Details  []CoTeachingPlanBrief `json:"details"`
}

// CoTeachingPlanBrief 合班成员计划简要信息
type CoTeachingPlanBrief struct {
	ID        uint   `json:"id"`
	PlanType  string `json:"plan_type"`
	YearLevel int    `json:"year_level"`
}

// MergeRequest 合并计划到合班组
type MergeRequest struct {
	GroupKey string `json:"group_key" binding:"required,max=128"`
	PlanIDs  []uint `json:"plan_ids"  binding:"required,min=1,dive,min=1"`
}

// UnmergeRequest 从合班组移除计划
type UnmergeRequest struct {
	GroupKey string `json:"group_key" binding:"required,max=128"`
	PlanIDs  []uint `json:"plan_ids"  binding:"required,min=1,dive,min=1"`
}

// SplitPartNumbers 拆分后两部分的编号
type SplitPartNumbers struct {
	Part1 int `json:"part1" binding:"required,min=1"`
	Part2 int `json:"part2" binding:"required,min=1"`
}

// SplitRequest 将一个合班组拆分为两部分
type SplitRequest struct {
	OriginalGroupKey string           `json:"original_group_key" binding:"required,max=128"`
	Part1IDs         []uint           `json:"part1_ids"          binding:"required,min=1,dive,min=1"`
	Part2IDs         []uint           `json:"part2_ids"          binding:"required,min=1,dive,min=1"`
	SubjectCode      string           `json:"subject_code"       binding:"required,max=32"`
	TermYear         string           `json:"term_year"          binding:"required"`
	PartNumbers      SplitPartNumbers `json:"part_numbers"`
}

// SplitGroupKeys 拆分生成的新组键
type SplitGroupKeys struct {
	Part1 string `json:"part1"`
	Part2 string `json:"part2"`
}

// SplitResponse 拆分结果
type SplitResponse struct {
	Success      bool           `json:"success"`
	NewGroupKeys SplitGroupKeys `json:"new_group_keys"`
}

// MergeBackRequest 将拆分的各部分合并回一个组
// MergedPlanIDs 必须是合并后的完整成员列表
type MergeBackRequest struct {
	SubjectCode   string `json:"subject_code"    binding:"required,max=32"`
	TermYear      string `json:"term_year"       binding:"required"`
	MergedPlanIDs []uint `json:"merged_plan_ids" binding:"required,min=1,dive,min=1"`
}

// MergeBackResponse 合并回结果
type MergeBackResponse struct {
	Success     bool   `json:"success"`
	NewGroupKey string `json:"new_group_key"`
}

// CoTeachingGroupResponse 合班组信息
type CoTeachingGroupResponse struct {
	ID       uint           `json:"id"`
	GroupKey string         `json:"group_key"`
	Plans    []PlanResponse `json:"plans"`
}

// CoTeachingGroupListRequest 合班组列表查询参数
type CoTeachingGroupListRequest struct {
	TermYear string `form:"term_year" binding:"required"`
}

// CoTeachingChangeLogListRequest 合班变更日志查询参数
type CoTeachingChangeLogListRequest struct {
	PaginationRequest
	GroupKey string `form:"group_key"`
}

// CoTeachingChangeLogResponse 合班变更日志
type CoTeachingChangeLogResponse struct {
	ID         uint                   `json:"id"`
	Action     string                 `json:"action"`
	GroupKey   string                 `json:"group_key"`
	PlanIDs    []int                  `json:"plan_ids"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	OperatorID string                 `json:"operator_id"`
	CreatedAt  string                 `json:"created_at"`
}
