package model

// 计划类型（学制轨道）
const (
	PlanTypeTransfer = "TRANSFER"
	PlanTypeFourYear = "FOUR_YEAR"
	PlanTypeDVEMSIX  = "DVE-MSIX"
	PlanTypeDVELVC   = "DVE-LVC"
)

// PlanTypes 全部合法的计划类型
var PlanTypes = []string{PlanTypeTransfer, PlanTypeFourYear, PlanTypeDVEMSIX, PlanTypeDVELVC}

// IsValidPlanType 判断计划类型是否合法
func IsValidPlanType(t string) bool {
	for _, pt := range PlanTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// Plan 开课计划表 — 对应 plans
type Plan struct {
	PlanID      uint   `gorm:"primaryKey;autoIncrement"  json:"plan_id"`
	SubjectCode string `gorm:"type:varchar(32);not null" json:"subject_code"`
	SubjectName string `gorm:"type:varchar(255);not null;default:''" json:"subject_name"`
	TermYear    string `gorm:"type:varchar(16);not null" json:"term_year"` // "1/2567"
	PlanType    string `gorm:"type:varchar(16);not null" json:"plan_type"`
	YearLevel   int    `gorm:"type:smallint;not null"    json:"year_level"`
	VersionedModel
}

// TableName 指定表名
func (Plan) TableName() string { return "plans" }
