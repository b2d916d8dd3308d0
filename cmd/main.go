package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/neighbours_care/internal/auth"
	"github.com/shenikar/neighbours_care/internal/config"
	"github.com/shenikar/neighbours_care/internal/dispatch"
	v1 "github.com/shenikar/neighbours_care/internal/handler/http/v1"
	"github.com/shenikar/neighbours_care/internal/mailer"
	"github.com/shenikar/neighbours_care/internal/presence"
	"github.com/shenikar/neighbours_care/internal/realtime"
	"github.com/shenikar/neighbours_care/internal/repository"
	"github.com/shenikar/neighbours_care/internal/service"
	"github.com/shenikar/neighbours_care/pkg/logger"
	"github.com/shenikar/neighbours_care/pkg/postgres"
	redisclient "github.com/shenikar/neighbours_care/pkg/redis"

	_ "github.com/shenikar/neighbours_care/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Neighbours Care API
// @version 1.0
// @description Emergency incident reporting with proximity alerts for nearby volunteers.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	log.Info("Running database migrations...")
	if err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	log.Info("Database migrations applied successfully")

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Метрики
	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Реестр присутствия
	registry := presence.NewRegistry(presence.WithBuckets(cfg.PresenceBuckets))
	dispatch.RegisterPresenceGauge(metricsRegistry, registry.Len)

	// Инициализация репозиториев
	incidentRepo := repository.NewIncidentRepository(dbpool, redisClient)
	userRepo := repository.NewUserRepository(dbpool)

	// Отправка писем: SMTP, если настроен, иначе только журнал
	var sender mailer.Sender
	if cfg.SMTPConfigured() {
		smtpSender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			log.Fatalf("Failed to configure SMTP sender: %v", err)
		}
		sender = smtpSender
	} else {
		log.Warn("SMTP is not configured, alert emails will only be logged")
		sender = mailer.NewLogSender(log)
	}

	var dispatchMailer dispatch.Mailer = sender
	var mailWorker *mailer.Worker
	if cfg.MailQueueEnabled {
		dispatchMailer = mailer.NewRedisQueue(redisClient)
		mailWorker = mailer.NewWorker(redisClient, sender, log, mailer.WorkerConfig{
			MaxRetries:  cfg.MailMaxRetries,
			BaseDelay:   cfg.MailRetryBaseDelay,
			SendTimeout: cfg.DispatchTimeout,
		})
		mailWorker.Start(ctx)
	}

	// Координатор рассылки
	coordinator := dispatch.NewCoordinator(
		userRepo,
		incidentRepo,
		registry,
		dispatch.NewLivePush(registry, log),
		dispatch.NewAsyncMail(dispatchMailer, cfg.FrontendURL),
		dispatch.Config{
			RadiusMeters:    cfg.AlertRadiusMeters,
			StalenessWindow: cfg.StalenessWindow,
			CallTimeout:     cfg.DispatchTimeout,
			MailConcurrency: cfg.MailConcurrency,
		},
		log,
		dispatch.WithMetrics(dispatch.NewMetrics(metricsRegistry)),
	)

	// Токены и realtime-сервер
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatalf("Failed to configure token service: %v", err)
	}
	realtimeServer := realtime.NewServer(registry, tokens, userRepo, realtime.Config{
		PingInterval:  cfg.WSPingInterval,
		WriteTimeout:  cfg.WSWriteTimeout,
		SendBuffer:    cfg.WSSendBuffer,
		AllowedOrigin: cfg.FrontendURL,
	}, log)

	// Инициализация сервисов
	incidentService := service.NewIncidentService(incidentRepo, coordinator, realtimeServer, registry, log)
	volunteerService := service.NewVolunteerService(userRepo, registry, cfg.StalenessWindow, log)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, volunteerService, tokens, realtimeServer.ServeWS, log)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// http.Server не отслеживает websocket-соединения после upgrade
	realtimeServer.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	cancel()
	if mailWorker != nil {
		mailWorker.Wait()
	}

	log.Info("Server gracefully stopped")
}
