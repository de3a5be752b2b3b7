package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-ops-api/api/swagger"
	"github.com/noah-isme/course-ops-api/internal/handler"
	"github.com/noah-isme/course-ops-api/internal/middleware"
	"github.com/noah-isme/course-ops-api/internal/repository"
	"github.com/noah-isme/course-ops-api/internal/service"
	"github.com/noah-isme/course-ops-api/pkg/cache"
	"github.com/noah-isme/course-ops-api/pkg/config"
	"github.com/noah-isme/course-ops-api/pkg/database"
	"github.com/noah-isme/course-ops-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-ops-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-ops-api/pkg/storage"
	"github.com/noah-isme/course-ops-api/pkg/tabular"
)

// @title Course Ops API
// @version 1.0.0
// @description Administrative backend for the course website: roster reconciliation, attendance, grades and course content.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	migrate := flag.Bool("migrate", false, "apply the database schema and exit")
	schemaPath := flag.String("schema", "scripts/schema.sql", "path to the schema file used by -migrate")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	if *migrate {
		if err := applySchema(db, *schemaPath); err != nil {
			logr.Fatal("schema migration failed", zap.Error(err))
		}
		logr.Info("schema applied", zap.String("path", *schemaPath))
		return
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Roster.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Roster.CacheTTL, logr, true)
	}

	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	courseRepo := repository.NewCourseRepository(db)

	rosterSvc := service.NewRosterService(service.RosterServiceParams{
		Register: newSource(cfg.Roster.RegisterSource, cfg.Roster.SourceTimeout),
		Survey:   newSource(cfg.Roster.SurveySource, cfg.Roster.SourceTimeout),
		Cache:    cacheSvc,
		Logger:   logr,
		Config: service.RosterServiceConfig{
			CacheTTL:       cfg.Roster.CacheTTL,
			RetryAttempts:  cfg.Roster.RetryAttempts,
			RetryBaseDelay: cfg.Roster.RetryBaseDelay,
		},
	})

	courseSvc := service.NewCourseService(service.CourseServiceParams{
		Repo:   courseRepo,
		Cache:  cacheSvc,
		Logger: logr,
		Config: service.CourseServiceConfig{
			DefaultLabCount: cfg.Course.DefaultLabCount,
			CacheTTL:        cfg.Course.CacheTTL,
		},
	})

	migrationSvc := service.NewMigrationService(service.MigrationServiceParams{
		Repo:      studentRepo,
		Structure: courseSvc,
		Cache:     cacheSvc,
		Logger:    logr,
		Config: service.MigrationServiceConfig{
			BatchSize:  cfg.Course.BatchSize,
			Workers:    cfg.Jobs.WorkerConcurrency,
			MaxRetries: cfg.Jobs.WorkerRetries,
			RetryDelay: cfg.Jobs.RetryDelay,
		},
	})
	courseSvc.SetSyncer(migrationSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	migrationSvc.Start(ctx)
	defer migrationSvc.Stop()

	studentSvc := service.NewStudentService(service.StudentServiceParams{
		Repo:      studentRepo,
		Roster:    rosterSvc,
		Structure: courseSvc,
		Metrics:   metricsSvc,
		Logger:    logr,
	})
	operationsSvc := service.NewOperationsService(studentSvc, courseSvc)
	attendanceSvc := service.NewAttendanceService(service.AttendanceServiceParams{
		Classes:  classRepo,
		Students: studentRepo,
		Cache:    cacheSvc,
		Logger:   logr,
	})
	authSvc := service.NewAuthService(nil, logr, service.AuthConfig{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		Password:     cfg.Admin.Password,
		TokenSecret:  cfg.JWT.Secret,
		TokenExpiry:  cfg.JWT.Expiration,
		Issuer:       "course-ops-api",
	})

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("export storage init failed", zap.Error(err))
	}
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Roster:    studentSvc,
		Structure: courseSvc,
		Storage:   exportStore,
		Signer:    storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		Config: service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		},
		Logger: logr,
	})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := exportSvc.Cleanup(0); err != nil {
					logr.Warn("export cleanup failed", zap.Error(err))
				} else if len(removed) > 0 {
					logr.Info("expired exports removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(handler.StudentHandlerParams{
		Students:   studentSvc,
		Roster:     rosterSvc,
		Operations: operationsSvc,
		Migration:  migrationSvc,
		Exports:    exportSvc,
	})
	classHandler := handler.NewClassHandler(attendanceSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", readinessHandler(db))
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/:token", exportHandler.Download)

	admin := api.Group("/admin", middleware.JWT(authSvc))
	admin.GET("/me", authHandler.Me)
	admin.GET("/system-metrics", metricsHandler.System)

	students := admin.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/register", studentHandler.Register)
	students.GET("/survey", studentHandler.Survey)
	students.GET("/emails", studentHandler.Emails)
	students.GET("/operations/metrics", studentHandler.Metrics)
	students.GET("/operations/status", studentHandler.Status)
	students.POST("/sync", studentHandler.Sync)
	students.GET("/sync-status", studentHandler.SyncStatus)
	students.POST("/export", studentHandler.Export)
	students.POST("/operations/bulk", studentHandler.BulkUpdate)
	students.GET("/:email", studentHandler.Get)
	students.PUT("/:email", studentHandler.Update)

	classes := admin.Group("/classes")
	classes.GET("", classHandler.List)
	classes.POST("", classHandler.Create)
	classes.DELETE("/:id", classHandler.Delete)
	classes.POST("/:id/attendance", classHandler.MarkAttendance)

	course := admin.Group("/course")
	course.GET("", courseHandler.Get)
	course.PUT("", courseHandler.Update)
	course.GET("/structure", courseHandler.Structure)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Warn("shutdown incomplete", zap.Error(err))
	}
}

// newSource picks an HTTP or filesystem CSV source; an empty location leaves
// the source unconfigured and the roster endpoints report 503.
func newSource(location string, timeout time.Duration) tabular.Source {
	if location == "" {
		return nil
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return tabular.NewHTTPSource(location, timeout)
	}
	return tabular.NewFileSource(location)
}

func readinessHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func applySchema(db *sqlx.DB, path string) error {
	ddl, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.Exec(string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
