package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/unihub-backend/internal/api/handler"
	"github.com/xela07ax/unihub-backend/internal/api/server"
	"github.com/xela07ax/unihub-backend/internal/api/service"
	"github.com/xela07ax/unihub-backend/internal/audit"
	"github.com/xela07ax/unihub-backend/internal/identity"
	"github.com/xela07ax/unihub-backend/internal/infra"
	"github.com/xela07ax/unihub-backend/internal/infra/auth"
	"github.com/xela07ax/unihub-backend/internal/repository/postgres"
	"github.com/xela07ax/unihub-backend/internal/workflow"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Инфраструктура и ресурсы
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	store, err := postgres.NewStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to init postgres pool", zap.Error(err))
	}
	if err := store.Ping(ctx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	cancel()
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Открытый ключ Identity-сервиса для проверки bearer-токенов
	pubKey, err := auth.ParseRSAPublicKey(cfg.Identity.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse identity public key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(pubKey)
	directory := identity.NewClient(cfg.Identity, logger)

	// Журнал событий workflow (асинхронный, пишет пачками)
	trail := audit.NewTrail(store, cfg.Audit.BufferSize, cfg.Audit.FlushInterval, logger)
	trail.Start()
	defer trail.Stop()

	// Метрики
	reg := prometheus.NewRegistry()
	metrics := workflow.NewMetrics(reg)

	// 3. Движок согласований (Dependency Injection)
	registry := workflow.NewRegistry()
	runner := workflow.NewRunner(registry, metrics, logger)
	approvalService := service.NewApprovalService(store, runner, directory, rdb, trail, metrics, logger)

	// Реестр наполняется после сервиса: хендлер комитета сам создает заявки
	available := map[string]workflow.Handler{
		"noop":             workflow.NewNoopHandler(),
		"group_member":     workflow.NewAddGroupMemberHandler(store, logger),
		"staff_assign":     workflow.NewAssignProjectStaffHandler(store, logger),
		"proposal_create":  workflow.NewCreateProposalHandler(store, cfg.Academic.ActiveState, logger),
		"proposal_forward": workflow.NewForwardToCommitteeHandler(approvalService, logger),
	}
	workflow.Bind(registry, cfg.Workflow.Actions, available, logger)

	// 4. HTTP-слой
	approvalHandler := handler.NewApprovalHandler(approvalService)
	apiServer := server.NewAPIServer(cfg, logger, validator, approvalHandler, reg)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 5. Запуск и Graceful Shutdown
	go func() {
		logger.Info("API server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
