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
	"github.com/rs/zerolog"

	"github.com/pathshala-labs/pathshala-api/internal/config"
	"github.com/pathshala-labs/pathshala-api/internal/database"
	"github.com/pathshala-labs/pathshala-api/internal/handler"
	"github.com/pathshala-labs/pathshala-api/internal/middleware"
	"github.com/pathshala-labs/pathshala-api/internal/models"
	"github.com/pathshala-labs/pathshala-api/internal/repository"
	"github.com/pathshala-labs/pathshala-api/internal/router"
	"github.com/pathshala-labs/pathshala-api/internal/service"
	"github.com/pathshala-labs/pathshala-api/pkg/ai"
	cloud "github.com/pathshala-labs/pathshala-api/pkg/cloudinary"
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

	if err := db.AutoMigrate(&models.Student{}, &models.Course{}, &models.Enrollment{}, &models.CourseProgress{}, &models.Notification{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	} else {
		logger.Warn().Msg("nats url not configured, cross-node event fanout disabled")
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	courseRepo := repository.NewCourseRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	generator, err := buildGenerator(cfg)
	if err != nil {
		log.Fatalf("failed to create quiz generator: %v", err)
	}

	eventPublisher := service.NewEventPublisher(notificationRepo, redisClient, cfg.EventChannelBase, natsConn, logger)
	progressService := service.NewProgressService(courseRepo, progressRepo, redisClient, cfg.ProgressCacheTTL, eventPublisher, validate, logger)
	courseService := service.NewCourseService(courseRepo, enrollmentRepo, studentRepo, validate, uploader, logger)
	quizService := service.NewQuizService(courseRepo, progressService, generator, redisClient, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, logger)

	courseHandler := handler.NewCourseHandler(courseService, logger)
	progressHandler := handler.NewProgressHandler(progressService, logger)
	quizHandler := handler.NewQuizHandler(quizService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		CourseHandler:       courseHandler,
		ProgressHandler:     progressHandler,
		QuizHandler:         quizHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		QuizRateLimit:       middleware.RateLimit("quiz", 5, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildGenerator(cfg config.Config) (ai.Generator, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return ai.NewAnthropicGenerator(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
	default:
		return ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		})
	}
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
