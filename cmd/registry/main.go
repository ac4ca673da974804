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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/a2a-registry/internal/auditlog"
	"github.com/xela07ax/a2a-registry/internal/engine"
	"github.com/xela07ax/a2a-registry/internal/infra"
	"github.com/xela07ax/a2a-registry/internal/policy"
	"github.com/xela07ax/a2a-registry/internal/registry"
	"github.com/xela07ax/a2a-registry/internal/repository"
	"github.com/xela07ax/a2a-registry/internal/repository/postgres"
	"github.com/xela07ax/a2a-registry/internal/server"
	"github.com/xela07ax/a2a-registry/internal/server/handler"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	// Контекст жизненного цикла фоновых горутин: cancel() останавливает
	// слушателя инвалидаций при завершении процесса
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. PostgreSQL: пул, ping, схема
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Fatal("invalid database url", zap.Error(err))
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(appCtx, poolCfg)
	if err != nil {
		logger.Fatal("database pool init failed", zap.Error(err))
	}
	defer pool.Close()

	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := pool.Ping(pingCtx); err != nil {
		pingCancel()
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	if err := postgres.EnsureSchema(appCtx, pool); err != nil {
		logger.Fatal("schema init failed", zap.Error(err))
	}

	// 3. Слои хранения: репозитории + надежностная обертка read-пути
	policyRepo := postgres.NewPolicyRepo(pool)
	auditRepo := postgres.NewAuditRepo(pool)
	policyReader := repository.NewResilientPolicyReader(policyRepo)
	recorder := auditlog.NewRecorder(auditRepo, logger)

	// Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// 4. Кэш политик: холодная загрузка + инвалидации через Redis
	cache := policy.NewPairCache(policyReader, logger)
	cache.OnResize(func(n int) { metrics.PolicyCacheSize.Set(float64(n)) })
	if err := cache.Refresh(appCtx); err != nil {
		// Не фатально: read-through дочитает пары по мере запросов
		logger.Warn("policy cache cold load failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		go cache.Listen(appCtx, rdb, infra.RedisChanPolicyUpdate)
	}

	// 5. Ядро: движок решений + реестр (Dependency Injection)
	eng := engine.New(cache, recorder, metrics, logger)
	regService := registry.NewService(policyRepo, recorder, cache, rdb, logger)

	// 6. HTTP-сервер
	srv := server.New(
		cfg,
		logger,
		handler.NewCheckHandler(eng),
		handler.NewPolicyHandler(regService),
		handler.NewAuditHandler(recorder),
		handler.NewHealthHandler(cfg.Version),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("A2A Registry started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("A2A Registry stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("A2A Registry exited properly")
}
