package dto

// ── 开课计划模块 DTO ──

// CreatePlanRequest 创建计划请求
type CreatePlanRequest struct {
	SubjectCode string `json:"subject_code" binding:"required,max=32"`
	SubjectName string `json:"subject_name" binding:"omitempty,max=255"`
	TermYear    string `json:"term_year"    binding:"required"` // "1/2567"
	PlanType    string `json:"plan_type"    binding:"required,oneof=TRANSFER FOUR_YEAR DVE-MSIX DVE-LVC"`
	YearLevel   int    `json:"year_level"   binding:"required,min=1,max=8"`
}

// UpdatePlanRequest 更新计划请求
type UpdatePlanRequest struct {
	SubjectCode *string `json:"subject_code" binding:"omitempty,max=32"`
	SubjectName *string `json:"subject_name" binding:"omitempty,max=255"`
	TermYear    *string `json:"term_year"`
	PlanType    *string `json:"plan_type"    binding:"omitempty,oneof=TRANSFER FOUR_YEAR DVE-MSIX DVE-LVC"`
	YearLevel   *int    `json:"year_level"   binding:"omitempty,min=1,max=8"`
	Version     int     `json:"version"      binding:"required,min=1"`
}

// PlanListRequest 计划列表查询参数
type PlanListRequest struct {
	PaginationRequest
	SubjectCode string   `form:"subject_code"`
	TermYear    string   `form:"term_year"`
	PlanTypes   []string `form:"plan_type"`
	YearLevel   *int     `form:"year_level" binding:"omitempty,min=1,max=8"`
}

// PlanResponse 计划信息响应
type PlanResponse struct {
	ID          uint   `json:"id"`
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	TermYear    string `json:"term_year"`
	PlanType    string `json:"plan_type"`
	YearLevel   int    `json:"year_level"`
	Version     int    `json:"version"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
