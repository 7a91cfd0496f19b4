package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credit-service/internal/conf"
	"credit-service/internal/metrics"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

const defaultPurgeSpec = "0 30 3 * * *"

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	_ = godotenv.Load()

	// 初始化配置
	c := config.New(
		config.WithSource(
			env.NewSource("CREDIT_"),
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/credit-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}
	if bc.Log != nil && bc.Log.Level != "" {
		logConfig.Level = bc.Log.Level
	}

	loggerInstance := logger.NewLogger(logConfig)

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "credit-cron",
	)

	logHelper := log.NewHelper(loggerInstance)
	metrics.InitMetrics()

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	purgeSpec := defaultPurgeSpec
	if bc.Cron != nil && bc.Cron.PurgeSpec != "" {
		purgeSpec = bc.Cron.PurgeSpec
	}

	// 创建定时任务调度器（支持秒级调度）
	// 多实例部署时由 redsync 锁保证同一时刻只有一个实例执行清理
	cronScheduler := cron.New(cron.WithSeconds())

	_, err = cronScheduler.AddFunc(purgeSpec, func() {
		logHelper.Info("[CRON] Starting webhook event purge...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		count, err := app.housekeeping.PurgeWebhookEvents(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Error purging webhook events: %v", err)
			return
		}
		logHelper.Infof("[CRON] Finished webhook event purge: deleted=%d", count)
	})
	if err != nil {
		panic(err)
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Infof("  - Webhook event purge: %s", purgeSpec)
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
