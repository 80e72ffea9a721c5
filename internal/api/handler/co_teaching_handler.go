package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"curriplan/internal/dto"
	"curriplan/internal/service"
	"curriplan/pkg/response"
)

// CoTeachingHandler 合班模块 HTTP 处理器
type CoTeachingHandler struct {
	coTeachingSvc service.CoTeachingService
}

// NewCoTeachingHandler 创建 CoTeachingHandler
func NewCoTeachingHandler(coTeachingSvc service.CoTeachingService) *CoTeachingHandler {
	return &CoTeachingHandler{coTeachingSvc: coTeachingSvc}
}

// LookupGroup 查询计划所在合班组
// GET /api/v1/plans/:id/co-teaching
func (h *CoTeachingHandler) LookupGroup(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.coTeachingSvc.Lookup(c.Request.Context(), id)
	if err != nil {
		h.handleCoTeachingError(c, err)
		return
	}

	response.OK(c, result)
}

// ListGroups 列出学期内的合班组
// GET /api/v1/co-teaching/groups?term_year=1/2567
func (h *CoTeachingHandler) ListGroups(c *gin.Context) {
	var req dto.CoTeachingGroupListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "term_year 不能为空")
		return
	}

	groups, err := h.coTeachingSvc.ListGroups(c.Request.Context(), req.TermYear)
	if err != nil {
		h.handleCoTeachingError(c, err)
		return
	}

	response.OK(c, gin.H{"list": groups})
}

// Merge 将计划并入合班组
// POST /api/v1/co-teaching/merge
func (h *CoTeachingHandler) Merge(c *gin.Context) {
	var req dto.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.coTeachingSvc.Merge(c.Request.Context(), &req, callerID); err != nil {
		h.handleCoTeachingError(c, err)
		return
	}

	response.OK(c, gin.H{"success": true})
}

// Unmerge 将计划移出合班组
// POST /api/v1/co-teaching/unmerge
func (h *CoTeachingHandler) Unmerge(c *gin.Context) {
	var req dto.UnmergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.coTeachingSvc.Unmerge(c.Request.Context(), &req, callerID); err != nil {
		h.handleCoTeachingError(c, err)
		return
	}

	response.OK(c, gin.H{"success": true})
}

// Split 拆分合班组
// POST /api/v1/co-teaching/split
func (h *CoTeachingHandler) Split(c *gin.Context) {
	var req dto.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.coTeachingSvc.Split(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleCoTeachingError(c, err)
		return
	}

	response.OK(c, result)
}

// MergeBack 将拆分的各部分合并回一个组
// POST /api/v1/co-teaching/merge-back
func (h *CoTeachingHandler) MergeBack(c *gin.Context) {
	var req dto.MergeBackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.coTeachingSvc.MergeBack(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleCoTeachingError(c, err)
		return
	}

	response.OK(c, result)
}

// ListChangeLogs 查询合班变更日志
// GET /api/v1/co-teaching/change-logs
func (h *CoTeachingHandler) ListChangeLogs(c *gin.Context) {
	var req dto.CoTeachingChangeLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	logs, total, err := h.coTeachingSvc.ListChangeLogs(c.Request.Context(), &req)
	if err != nil {
		h.handleCoTeachingError(c, err)
		return
	}

	response.OKPage(c, logs, total, req.GetPage(), req.GetPageSize())
}

// handleCoTeachingError 统一处理合班模块业务错误
func (h *CoTeachingHandler) handleCoTeachingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		response.NotFound(c, 21001, "开课计划不存在")
	case errors.Is(err, service.ErrInvalidPlanID):
		response.BadRequest(c, 21002, "开课计划ID无效")
	case errors.Is(err, service.ErrInvalidTermYear):
		response.BadRequest(c, 21003, "学期格式无效，应为 学期号/学年")
	case errors.Is(err, service.ErrInvalidSubjectCode):
		response.BadRequest(c, 21004, "科目代码不能为空")
	case errors.Is(err, service.ErrInvalidGroupKey):
		response.BadRequest(c, 21005, "合班组键不能为空")
	case errors.Is(err, service.ErrEmptyPlanIDs):
		response.BadRequest(c, 21006, "开课计划ID列表不能为空")
	case errors.Is(err, service.ErrPartsOverlap):
		response.BadRequest(c, 21007, "拆分的两部分包含相同的开课计划")
	case errors.Is(err, service.ErrInvalidPartNumber):
		response.BadRequest(c, 21008, "拆分部分编号必须为不同的正整数")
	case errors.Is(err, service.ErrGroupKeyExists):
		response.Conflict(c, 21009, "合班组键已存在")
	case errors.Is(err, service.ErrGroupBusy):
		response.Conflict(c, 21010, "合班组正在被其他操作修改，请稍后重试")
	default:
		response.InternalError(c)
	}
}
