package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curriplan/pkg/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var downSteps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "执行内置数据库迁移",
		Long: `执行编译进二进制的 SQL 迁移至最新版本。

使用 --down N 回滚最近的 N 个版本。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if downSteps < 0 {
				return fmt.Errorf("--down 必须为正整数")
			}

			e, err := openEnv(opts.configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			sqlDB, err := e.db.DB()
			if err != nil {
				return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
			}

			if downSteps > 0 {
				if err := database.RollbackMigrations(sqlDB, downSteps, e.logger); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已回滚 %d 个版本\n", downSteps)
				return nil
			}

			if err := database.RunMigrations(sqlDB, e.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "迁移完成")
			return nil
		},
	}

	cmd.Flags().IntVar(&downSteps, "down", 0, "回滚的版本数")
	return cmd
}
