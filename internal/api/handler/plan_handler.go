package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"curriplan/internal/dto"
	"curriplan/internal/service"
	"curriplan/pkg/response"
)

// PlanHandler 开课计划模块 HTTP 处理器
type PlanHandler struct {
	planSvc service.PlanService
}

// NewPlanHandler 创建 PlanHandler
func NewPlanHandler(planSvc service.PlanService) *PlanHandler {
	return &PlanHandler{planSvc: planSvc}
}

// ListPlans 获取计划列表
// GET /api/v1/plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	var req dto.PlanListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	plans, total, err := h.planSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handlePlanError(c, err)
		return
	}

	response.OKPage(c, plans, total, req.GetPage(), req.GetPageSize())
}

// GetPlan 获取计划详情
// GET /api/v1/plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	plan, err := h.planSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handlePlanError(c, err)
		return
	}

	response.OK(c, plan)
}

// ListCounterparts 获取镜像计划（DVE-MSIX ↔ DVE-LVC）
// GET /api/v1/plans/:id/counterparts
func (h *PlanHandler) ListCounterparts(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	plans, err := h.planSvc.ListCounterparts(c.Request.Context(), id)
	if err != nil {
		h.handlePlanError(c, err)
		return
	}

	response.OK(c, gin.H{"list": plans})
}

// CreatePlan 创建计划
// POST /api/v1/plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	plan, err := h.planSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handlePlanError(c, err)
		return
	}

	response.Created(c, plan)
}

// UpdatePlan 更新计划
// PUT /api/v1/plans/:id
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	plan, err := h.planSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePlanError(c, err)
		return
	}

	response.OK(c, plan)
}

// DeletePlan 删除计划
// DELETE /api/v1/plans/:id
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.planSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handlePlanError(c, err)
		return
	}

	response.OK(c, nil)
}

// handlePlanError 统一处理开课计划模块业务错误
func (h *PlanHandler) handlePlanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		response.NotFound(c, 20001, "开课计划不存在")
	case errors.Is(err, service.ErrInvalidPlanID):
		response.BadRequest(c, 20002, "开课计划ID无效")
	case errors.Is(err, service.ErrInvalidPlanType):
		response.BadRequest(c, 20003, "计划类型无效")
	case errors.Is(err, service.ErrInvalidTermYear):
		response.BadRequest(c, 20004, "学期格式无效，应为 学期号/学年")
	case errors.Is(err, service.ErrInvalidSubjectCode):
		response.BadRequest(c, 20005, "科目代码不能为空")
	case errors.Is(err, service.ErrPlanVersionConflict):
		response.Conflict(c, 20006, "开课计划已被修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
