package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fnordcredit/internal/config"
	"fnordcredit/internal/handler"
	"fnordcredit/internal/infrastructure/cache"
	"fnordcredit/internal/infrastructure/database"
	"fnordcredit/internal/infrastructure/lock"
	"fnordcredit/internal/infrastructure/mq"
	"fnordcredit/internal/job"
	"fnordcredit/internal/logger"
	"fnordcredit/internal/service"
	"fnordcredit/pkg/idgen"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "事件编号生成器的机器 ID")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, logCloser, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "初始化日志失败:", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(cfg, log, *workerID); err != nil {
		log.Error().Err(err).Msg("服务异常退出")
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger, workerID int64) error {
	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids, err := idgen.NewSnowflake(workerID)
	if err != nil {
		return err
	}

	// 初始化 MySQL
	db, err := database.InitMySQL(&cfg.MySQL, logger.GormLevel(log.GetLevel()))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// 初始化 Redis
	redisClient, err := cache.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// 初始化 Kafka
	producer, err := mq.InitKafka(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	guard := lock.NewGuard(redisClient, cfg.Ledger.LockTTL, cfg.Ledger.LockRetryInterval, cfg.Ledger.LockMaxRetries)
	accountService := service.NewAccountService(db, guard, ids, cfg, log)
	creditService := service.NewCreditService(db, guard, ids, cfg, log)

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, producer, cfg, log)
	go outboxSender.Start(ctx)

	auditJob := job.NewLedgerAuditJob(db, cfg, log)
	go auditJob.Start(ctx)

	// 设置路由
	h := handler.NewHandler(accountService, creditService, log)
	router := handler.SetupRouter(h, &cfg.Server, log)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info().Msg("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("服务关闭异常")
	}

	log.Info().Msg("服务已关闭")
	return nil
}
