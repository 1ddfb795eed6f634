package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/govorilka/core/internal/config"
	"github.com/govorilka/core/internal/database"
	"github.com/govorilka/core/internal/middleware"
	pkgcron "github.com/govorilka/core/internal/pkg/cron"
	pkgredis "github.com/govorilka/core/internal/pkg/redis"
	"github.com/govorilka/core/internal/pkg/secret"
	"github.com/govorilka/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
	queue  *taskqueue.Queue
}

// New initializes the application: config → DB → Redis → bot → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotence"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			return originAllowed(patterns, originHost(origin))
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	var bot *tgbotapi.BotAPI
	if cfg.Telegram.BotToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Warn("telegram-бот недоступен, синхронизация и уведомления выключены", zap.Error(err))
			bot = nil
		}
	}

	codec := secret.NewCodec(cfg.SecretKey)

	ctx, cancel := context.WithCancel(context.Background())

	taskSvc := taskqueue.NewService(rc)
	queue := taskqueue.NewQueue(taskSvc, logger)
	sched := pkgcron.New()

	app := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		logger: logger,
		cancel: cancel,
		sched:  sched,
		queue:  queue,
	}

	deps := app.buildServices(bot, codec)
	app.registerRoutes(rc, deps, taskSvc)
	registerCronJobs(sched, db, deps, queue, taskSvc, logger)

	queue.Start(ctx)
	go sched.Start(ctx)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and drains the task queue.
func (a *App) Shutdown() {
	a.cancel()
	a.queue.Wait()
}
