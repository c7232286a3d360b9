package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradehub-api/internal/archive"
	"github.com/noah-isme/gradehub-api/internal/config"
	"github.com/noah-isme/gradehub-api/internal/database"
	"github.com/noah-isme/gradehub-api/internal/handler"
	"github.com/noah-isme/gradehub-api/internal/middleware"
	"github.com/noah-isme/gradehub-api/internal/models"
	"github.com/noah-isme/gradehub-api/internal/repository"
	"github.com/noah-isme/gradehub-api/internal/router"
	"github.com/noah-isme/gradehub-api/internal/service"
	"github.com/noah-isme/gradehub-api/pkg/preview"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Course{}, &models.Grader{}, &models.Student{},
		&models.Assignment{}, &models.Submission{}, &models.SubmissionFile{},
		&models.Grade{}, &models.GradeTotal{},
		&models.AuditLogEntry{}, &models.FormulaAnalysis{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional; analysis caching and completion events
	// degrade gracefully without them.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)

	auditService := service.NewAuditService(auditRepo, logger)
	rosterService := service.NewRosterService(courseRepo, studentRepo, validate, auditService, logger)
	assignmentService, err := service.NewAssignmentService(assignmentRepo, validate, auditService, logger)
	if err != nil {
		log.Fatalf("failed to create assignment service: %v", err)
	}
	matcherService := service.NewMatcherService(submissionRepo, studentRepo, assignmentRepo, auditService, cfg.MatchThreshold, logger)
	intakeService := service.NewIntakeService(submissionRepo, assignmentRepo, studentRepo, matcherService, auditService, cfg.CacheDir, archive.DefaultLimits(), cfg.IntakeConcurrency, logger)
	claimService := service.NewClaimService(submissionRepo, auditService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, logger)
	gradingService := service.NewGradingService(gradeRepo, submissionRepo, assignmentRepo, validate, auditService, logger)
	exportService := service.NewExportService(assignmentRepo, studentRepo, gradeRepo, validate, auditService, logger)

	converter := preview.New(cfg.SofficeBinary, cfg.PreviewTimeout, logger)
	workbookService := service.NewWorkbookService(
		submissionRepo, assignmentRepo, analysisRepo,
		redisClient, natsConn, converter,
		cfg.AnalysisCacheTTL, cfg.ParseTimeout, cfg.AnalysisWorkers,
		logger,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workbookService.Start(workerCtx)

	courseHandler := handler.NewCourseHandler(rosterService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	intakeHandler := handler.NewIntakeHandler(intakeService, validate, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, matcherService, claimService, validate, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, exportService, logger)
	analysisHandler := handler.NewAnalysisHandler(workbookService, validate, logger)
	auditHandler := handler.NewAuditHandler(auditService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		CourseHandler:     courseHandler,
		AssignmentHandler: assignmentHandler,
		IntakeHandler:     intakeHandler,
		SubmissionHandler: submissionHandler,
		GradingHandler:    gradingHandler,
		AnalysisHandler:   analysisHandler,
		AuditHandler:      auditHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
