package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"curriplan/config"
	"curriplan/pkg/database"
	applogger "curriplan/pkg/logger"
)

// rootOptions 子命令共享的全局参数
type rootOptions struct {
	configPath string
}

// newRootCmd 每次调用构造一棵新的命令树，flag 状态不跨调用残留
func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "curriplan-admin",
		Version: "dev",
		Short:   "curriplan 运维命令行",
		Long: `curriplan-admin 提供不经过 HTTP 服务的运维操作：

  migrate  执行或回滚内置数据库迁移
  export   导出指定学期的合班组为 Excel`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	if version != "" {
		cmd.Version = version
		cmd.SetVersionTemplate("{{.Version}}\n")
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径（默认查找 ./config/config.yaml）")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	return cmd
}

// Execute 执行根命令
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

// env 子命令共享的运行环境
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func (e *env) Close() {
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
	e.logger.Sync()
}

// openEnv 加载配置、初始化日志并连接数据库
func openEnv(configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}
