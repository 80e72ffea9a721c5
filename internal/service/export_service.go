package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"curriplan/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoGroups     = errors.New("该学期暂无合班组")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出指定学期的合班组为 Excel (.xlsx)
//   - 导出以 bytes.Buffer 返回，由 Handler 层或 CLI 决定写入位置
//   - 每行一个 (合班组, 成员计划)，同组成员相邻排列
type ExportService interface {
	// ExportGroups 导出学期合班组为 Excel
	ExportGroups(ctx context.Context, termYear string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var exportHeaders = []string{"合班组键", "计划ID", "科目代码", "科目名称", "计划类型", "年级"}

// ExportGroups 返回值：buf（Excel 内容）, filename（建议文件名）, error
func (s *exportService) ExportGroups(ctx context.Context, termYear string) (*bytes.Buffer, string, error) {
	termYear = strings.TrimSpace(termYear)
	term, year, err := ParseTermYear(termYear)
	if err != nil {
		return nil, "", err
	}

	groups, err := s.repo.CoTeaching.ListByTerm(ctx, termYear)
	if err != nil {
		s.logger.Error("查询合班组失败", zap.String("term_year", termYear), zap.Error(err))
		return nil, "", err
	}
	if len(groups) == 0 {
		return nil, "", ErrExportNoGroups
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "合班组"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 24)
	f.SetColWidth(sheetName, "B", "B", 10)
	f.SetColWidth(sheetName, "C", "C", 14)
	f.SetColWidth(sheetName, "D", "D", 32)
	f.SetColWidth(sheetName, "E", "E", 14)
	f.SetColWidth(sheetName, "F", "F", 8)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("第%s学期 %s学年 合班组", term, year))
	f.MergeCell(sheetName, "A1", cell(colName(len(exportHeaders)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range exportHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(exportHeaders)-1), 2), headerStyle)

	// 数据行
	row := 3
	for _, g := range groups {
		for _, p := range g.Plans {
			f.SetCellValue(sheetName, cell("A", row), g.GroupKey)
			f.SetCellValue(sheetName, cell("B", row), p.PlanID)
			f.SetCellValue(sheetName, cell("C", row), p.SubjectCode)
			f.SetCellValue(sheetName, cell("D", row), p.SubjectName)
			f.SetCellValue(sheetName, cell("E", row), p.PlanType)
			f.SetCellValue(sheetName, cell("F", row), p.YearLevel)
			row++
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("合班组_%s_%s.xlsx", term, year)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
