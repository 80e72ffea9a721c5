package handler

import "curriplan/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Plan       *PlanHandler
	CoTeaching *CoTeachingHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Plan:       NewPlanHandler(svc.Plan),
		CoTeaching: NewCoTeachingHandler(svc.CoTeaching),
		Export:     NewExportHandler(svc.Export),
	}
}
