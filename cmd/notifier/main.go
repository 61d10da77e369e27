package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/unihub-backend/internal/infra"
	"github.com/xela07ax/unihub-backend/internal/notify"
	"go.uber.org/zap"
)

// Notifier — фоновый воркер: слушает сигналы резолюции заявок из Redis
// и раздает их потребителям (пока — структурированный журнал).
func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Контекст жизненного цикла фоновых горутин: SIGTERM -> cancel
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	listener := notify.NewListener(rdb, reg, logger, notify.LogSink{Logger: logger})
	go listener.Run(appCtx)

	// Экспортируем метрики для Prometheus
	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Fatal(http.ListenAndServe(":9090", nil))
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("notifier started", zap.String("redis", cfg.Redis.Addr))

	<-stop
	logger.Info("notifier stopping")
	cancel()
}
