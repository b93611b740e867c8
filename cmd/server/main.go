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
	"github.com/itafisc/fiscal-api/internal/config"
	"github.com/itafisc/fiscal-api/internal/database"
	"github.com/itafisc/fiscal-api/internal/handlers"
	"github.com/itafisc/fiscal-api/internal/logger"
	"github.com/itafisc/fiscal-api/internal/middleware"
	"github.com/itafisc/fiscal-api/internal/repository"
	"github.com/itafisc/fiscal-api/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting Fiscal API", map[string]interface{}{
		"version":     "0.1.0",
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize repository layer
	propertyRepo := repository.NewPropertyRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	surveyRepo := repository.NewSurveyRepository(db)
	reportRepo := repository.NewReportRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	eventTypeRepo := repository.NewEventTypeRepository(db)
	importLogRepo := repository.NewImportLogRepository(db)

	// Initialize service layer
	postalService := services.NewPostalService(propertyRepo, cfg.Postal, log)
	propertyService := services.NewPropertyService(propertyRepo, log)
	noticeService := services.NewNoticeService(noticeRepo, propertyRepo, log)
	surveyService := services.NewSurveyService(surveyRepo, propertyRepo, log)
	reportService := services.NewReportService(reportRepo, propertyRepo, log)
	activityService := services.NewActivityService(activityRepo, log)
	referenceService := services.NewReferenceService(eventTypeRepo)
	importService := services.NewImportService(propertyRepo, importLogRepo, postalService, cfg.Import, log)

	// Initialize handlers
	propertyHandler := handlers.NewPropertyHandler(propertyService)
	noticeHandler := handlers.NewNoticeHandler(noticeService)
	surveyHandler := handlers.NewSurveyHandler(surveyService)
	reportHandler := handlers.NewReportHandler(reportService)
	activityHandler := handlers.NewActivityHandler(activityService)
	referenceHandler := handlers.NewReferenceHandler(referenceService)
	importHandler := handlers.NewImportHandler(importService)
	postalHandler := handlers.NewPostalHandler(postalService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		properties := v1.Group("/properties")
		{
			properties.GET("", propertyHandler.Search)
			properties.GET("/:id", propertyHandler.Get)
			properties.GET("/by-code/:code", propertyHandler.GetByCode)
		}

		notices := v1.Group("/notices")
		{
			notices.GET("", noticeHandler.List)
			notices.POST("", noticeHandler.Create)
			notices.GET("/latest", noticeHandler.Latest)
			notices.GET("/:id", noticeHandler.Get)
			notices.PUT("/:id", noticeHandler.Update)
			notices.DELETE("/:id", noticeHandler.Delete)
		}

		surveys := v1.Group("/surveys")
		{
			surveys.GET("", surveyHandler.List)
			surveys.POST("", surveyHandler.Create)
			surveys.GET("/:id", surveyHandler.Get)
			surveys.PUT("/:id", surveyHandler.Update)
			surveys.DELETE("/:id", surveyHandler.Delete)
		}

		reports := v1.Group("/reports")
		{
			reports.GET("", reportHandler.List)
			reports.POST("", reportHandler.Create)
			reports.GET("/:id", reportHandler.Get)
			reports.PUT("/:id", reportHandler.Update)
			reports.DELETE("/:id", reportHandler.Delete)
		}

		activities := v1.Group("/activities")
		{
			activities.GET("", activityHandler.List)
			activities.POST("", activityHandler.Create)
			activities.GET("/:id", activityHandler.Get)
			activities.PUT("/:id", activityHandler.Update)
			activities.DELETE("/:id", activityHandler.Delete)
		}

		imports := v1.Group("/imports")
		{
			imports.POST("", importHandler.Start)
			imports.GET("/latest", importHandler.Latest)
		}

		v1.GET("/postal-codes", postalHandler.Lookup)

		v1.GET("/notice-event-types", referenceHandler.NoticeEventTypes)
		v1.GET("/survey-event-types", referenceHandler.SurveyEventTypes)
		v1.GET("/report-event-types", referenceHandler.ReportEventTypes)
		v1.GET("/styles.css", referenceHandler.Stylesheet)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
