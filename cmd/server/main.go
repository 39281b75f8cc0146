// Package main 是服务端的入口点
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"neural-chat-server/internal/config"
	"neural-chat-server/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "neural-chat-server",
	Short: "Neural Chat 服务端",
	Long: `Neural Chat 服务端

提供带记忆档案的对话接口、文档结构化提取以及会话实时通知。
不带子命令运行时等同于 serve。`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移后退出",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs", "配置文件目录")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	// .env 不存在时忽略，直接使用环境变量
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置并创建日志
func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Server.Mode, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, log, nil
}
