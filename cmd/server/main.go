package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/signup-backend/internal/config"
	"github.com/ignatzorin/signup-backend/internal/db"
	httpHandlers "github.com/ignatzorin/signup-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/signup-backend/internal/http/router"
	"github.com/ignatzorin/signup-backend/internal/logger"
	"github.com/ignatzorin/signup-backend/internal/notify"
	"github.com/ignatzorin/signup-backend/internal/repository"
	"github.com/ignatzorin/signup-backend/internal/service"
	"github.com/ignatzorin/signup-backend/internal/store"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
	}
	logger.Init(logLevel, cfg.Env)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeCloseDB(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Redis хранит транзитное состояние регистрации: коды и заявки.
	redisClient, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("main: ошибка подключения к redis: %v", err)
	}
	defer safeCloseRedis(redisClient)

	// Хранилища транзитного состояния.
	otpStore := store.NewOtpStore(redisClient, cfg.OtpTTL)
	pendingStore := store.NewPendingRegistrationStore(redisClient, cfg.PendingTTL)

	// Диспетчер уведомлений с политиками устойчивости.
	channel := notify.NewClient(cfg.NotificationBaseURL, cfg.NotificationTimeout)
	dispatcher := notify.NewDispatcher(channel, notify.DispatcherConfig{
		RateLimit:     cfg.DispatchRateLimit,
		RatePeriod:    cfg.DispatchRatePeriod,
		MaxAttempts:   cfg.DispatchMaxAttempts,
		RetryInterval: cfg.DispatchRetryInterval,
		FailureRatio:  cfg.BreakerFailureRatio,
		MinRequests:   cfg.BreakerMinRequests,
		Cooldown:      cfg.BreakerCooldown,
	})

	// Репозитории и сервисы.
	userRepo := repository.NewUserRepository(dbConn)
	hasher := service.NewBcryptHasher()
	registrationService := service.NewRegistrationService(userRepo, otpStore, pendingStore, dispatcher, hasher)
	userService := service.NewUserService(userRepo, hasher)

	// HTTP хэндлеры.
	registrationHandler := httpHandlers.NewRegistrationHandler(registrationService)
	userHandler := httpHandlers.NewUserHandler(userService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, redisClient)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, registrationHandler, userHandler, healthHandler)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeCloseDB закрывает соединение с базой.
func safeCloseDB(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}

// safeCloseRedis закрывает соединение с redis.
func safeCloseRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		log.Printf("main: ошибка закрытия redis: %v", err)
	}
}
