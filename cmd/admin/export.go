package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"curriplan/internal/repository"
	"curriplan/internal/service"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		exportTerm string
		exportOut  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出指定学期的合班组为 Excel",
		Long: `导出指定学期的全部合班组及成员计划为 .xlsx 文件。

示例:
  curriplan-admin export --term 1/2567 --out groups.xlsx

未指定 --out 时使用建议文件名写入当前目录。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportTerm == "" {
				return fmt.Errorf("必须指定 --term")
			}
			if _, _, err := service.ParseTermYear(exportTerm); err != nil {
				return err
			}

			e, err := openEnv(opts.configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			exportSvc := service.NewExportService(repository.NewRepository(e.db), e.logger)
			buf, filename, err := exportSvc.ExportGroups(context.Background(), exportTerm)
			if err != nil {
				return err
			}

			out := exportOut
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}

			abs, _ := filepath.Abs(out)
			fmt.Fprintf(cmd.OutOrStdout(), "已导出 %s\n", abs)
			return nil
		},
	}

	cmd.Flags().StringVar(&exportTerm, "term", "", "学期，格式 学期号/学年，如 1/2567")
	cmd.Flags().StringVarP(&exportOut, "out", "o", "", "输出文件路径")
	return cmd
}
