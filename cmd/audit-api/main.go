package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/degree-audit-api/api/swagger"
	"github.com/noah-isme/degree-audit-api/internal/handler"
	"github.com/noah-isme/degree-audit-api/internal/middleware"
	"github.com/noah-isme/degree-audit-api/internal/repository"
	"github.com/noah-isme/degree-audit-api/internal/service"
	"github.com/noah-isme/degree-audit-api/pkg/cache"
	"github.com/noah-isme/degree-audit-api/pkg/config"
	"github.com/noah-isme/degree-audit-api/pkg/database"
	"github.com/noah-isme/degree-audit-api/pkg/jobs"
	"github.com/noah-isme/degree-audit-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/degree-audit-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/degree-audit-api/pkg/middleware/requestid"
	"github.com/noah-isme/degree-audit-api/pkg/storage"
)

// @title Degree Audit API
// @version 1.0.0
// @description Degree audit and course recommendation engine
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, graph cache disabled", "error", err)
		redisClient = nil
	}

	catalogRepo := repository.NewCatalogRepository(db)
	programRepo := repository.NewProgramRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Graph.CacheTTL, cfg.Audit.ResultCacheTTL, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	graphSvc := service.NewCatalogGraphService(catalogRepo, cacheRepo, metrics, logr)
	if cfg.Graph.RebuildOnStart {
		if _, err := graphSvc.Rebuild(ctx); err != nil {
			logr.Sugar().Fatalw("failed to build catalog graph", "error", err)
		}
	} else if err := graphSvc.WarmStart(ctx); err != nil {
		logr.Sugar().Fatalw("failed to warm catalog graph", "error", err)
	}

	recommender, err := service.NewRecommendationService(cfg.Scorer, logr)
	if err != nil {
		logr.Sugar().Fatalw("invalid scorer configuration", "error", err)
	}

	auditSvc := service.NewAuditService(graphSvc, studentRepo, programRepo, auditRepo,
		service.NewRequisiteService(logr), service.NewRequirementService(logr), recommender,
		nil, logr, metrics)

	queue := jobs.NewQueue("audits", auditSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Audit.WorkerConcurrency,
		BufferSize: cfg.Audit.QueueBufferSize,
		MaxRetries: cfg.Audit.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	auditSvc.AttachQueue(queue)
	auditSvc.AttachResultCache(cacheRepo)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(auditRepo, store, signer, logr)

	go func() {
		ticker := time.NewTicker(cfg.Exports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				exportSvc.Cleanup(cfg.Exports.SignedURLTTL)
			}
		}
	}()

	catalogSvc := service.NewCatalogService(catalogRepo, graphSvc, cacheRepo, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)

	auditHandler := handler.NewAuditHandler(auditSvc, exportSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc, graphSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	guarded := api.Group("", middleware.ServiceToken(cfg.Auth))

	guarded.POST("/audits", auditHandler.Run)
	api.GET("/audits/:id", auditHandler.Get)
	api.GET("/audits/:id/recommendations", auditHandler.Recommendations)
	guarded.POST("/audits/:id/export", auditHandler.Export)
	api.GET("/exports/download", auditHandler.Download)

	api.GET("/students/:studentId/audits", auditHandler.History)
	api.GET("/students/:studentId/audits/latest", auditHandler.Latest)
	api.GET("/students/:studentId/preferences", studentHandler.GetPreferences)
	guarded.PUT("/students/:studentId/preferences", studentHandler.UpdatePreferences)

	api.GET("/courses", catalogHandler.List)
	api.GET("/courses/:id", catalogHandler.Get)
	api.GET("/courses/:id/unlocks", catalogHandler.Unlocks)
	guarded.POST("/courses", catalogHandler.Create)
	api.GET("/catalog/graph", catalogHandler.GraphStatus)
	guarded.POST("/catalog/graph/rebuild", catalogHandler.RebuildGraph)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
