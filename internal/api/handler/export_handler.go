package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"curriplan/internal/service"
	"curriplan/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportCoTeaching 导出学期合班组
// GET /api/v1/export/co-teaching?term_year=1/2567
func (h *ExportHandler) ExportCoTeaching(c *gin.Context) {
	termYear := c.Query("term_year")
	if termYear == "" {
		response.BadRequest(c, 10001, "term_year 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportGroups(c.Request.Context(), termYear)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTermYear):
		response.BadRequest(c, 22001, "学期格式无效，应为 学期号/学年")
	case errors.Is(err, service.ErrExportNoGroups):
		response.NotFound(c, 22002, "该学期暂无合班组")
	default:
		response.InternalError(c)
	}
}
