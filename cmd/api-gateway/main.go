package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable-api/pkg/validation"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Timetable configuration, generation and export for school class groups
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	readiness := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.CacheTTL, logr, redisClient != nil)

	publisher := events.NewPublisher(nil, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.PublishTimeout, logr)
	if cfg.RabbitMQ.DSN != "" {
		conn, ch, err := events.Dial(cfg.RabbitMQ)
		if err != nil {
			logr.Sugar().Warnw("rabbitmq unavailable, timetable events disabled", "error", err)
		} else {
			defer conn.Close()
			defer ch.Close()
			publisher = events.NewPublisher(ch, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.PublishTimeout, logr)
		}
	}

	groupRepo := repository.NewGroupRepository(db)
	versionRepo := repository.NewTimetableVersionRepository(db)

	timetableSvc := service.NewTimetableService(
		groupRepo,
		versionRepo,
		db,
		cacheSvc,
		publisher,
		metricsSvc,
		service.NewExportService(logr, nil, nil, nil),
		validation.New(),
		logr,
		service.TimetableServiceConfig{
			Days:              cfg.Timetable.Days,
			MaxPeriods:        cfg.Timetable.MaxPeriods,
			Rooms:             cfg.Timetable.Rooms,
			Attempts:          cfg.Timetable.Attempts,
			Workers:           cfg.Timetable.Workers,
			LabMarker:         cfg.Timetable.LabMarker,
			Seed:              cfg.Timetable.Seed,
			CacheTTL:          cfg.Timetable.CacheTTL,
			GenerationTimeout: cfg.Timetable.GenerationTimeout,
		},
	)

	var jobSvc *service.GenerationJobService
	queue := jobs.NewQueue("timetable-generation", func(ctx context.Context, job jobs.Job) error {
		return jobSvc.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Timetable.AsyncWorkers,
		BufferSize: cfg.Timetable.AsyncQueueSize,
		JobTimeout: 2 * cfg.Timetable.GenerationTimeout,
		OnDrop: func(job jobs.Job, err error) {
			jobSvc.Abandon(job, err)
		},
		Logger: logr,
	})
	if err := metricsSvc.RegisterQueueDepth("timetable-generation", queue.Pending); err != nil {
		logr.Warn("queue depth gauge not registered", zap.Error(err))
	}
	jobSvc = service.NewGenerationJobService(groupRepo, timetableSvc, queue, cacheSvc, logr, service.GenerationJobConfig{})

	queue.Start(ctx)
	defer queue.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness, logr)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	registerRoutes(r.Group(cfg.APIPrefix), handler.NewTimetableHandler(timetableSvc, jobSvc), metricsHandler, tokens, groupRepo)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down", zap.Duration("grace", 15*time.Second))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func registerRoutes(api *gin.RouterGroup, timetables *handler.TimetableHandler, metrics *handler.MetricsHandler, tokens *service.TokenService, access *repository.GroupRepository) {
	api.Use(internalmiddleware.JWT(tokens))
	admin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	owner := internalmiddleware.RequireGroupOwner(access)
	member := internalmiddleware.RequireGroupMember(access)

	groups := api.Group("/groups/:id")
	groups.PUT("/timetable/config", admin, owner, timetables.Configure)
	groups.POST("/subjects", admin, owner, timetables.AddSubject)
	groups.POST("/timetable/generate", admin, owner, timetables.Generate)
	groups.PUT("/timetable", admin, owner, timetables.Update)
	groups.GET("/timetable", member, timetables.Get)
	groups.GET("/timetable/history", member, timetables.History)
	groups.GET("/timetable/export", member, timetables.Export)

	api.GET("/timetable/jobs/:jobId", timetables.JobStatus)
	api.GET("/metrics/summary", admin, metrics.Snapshot)
}
