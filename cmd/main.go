package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/tdhoang/prepwise/config"
	"github.com/tdhoang/prepwise/database"
	_ "github.com/tdhoang/prepwise/docs" // Swagger docs
	"github.com/tdhoang/prepwise/internal/controller"
	"github.com/tdhoang/prepwise/internal/logger"
	"github.com/tdhoang/prepwise/internal/model"
	"github.com/tdhoang/prepwise/internal/repository"
	"github.com/tdhoang/prepwise/internal/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Prepwise Quiz Session API
// @version 1.0
// @description Test session lifecycle and scoring service for the Prepwise exam-prep platform.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			database.NewRedisClient,
			NewGinEngine,
			NewSessionPolicy,
		),

		fx.Provide(
			repository.NewTestRepository,
			repository.NewQuestionRepository,
			repository.NewAnswerRepository,
			repository.NewScoreRepository,
			repository.NewSessionRepository,
			repository.NewUserRepository,
			repository.NewLeaderboardRepository,
		),

		fx.Provide(
			func(
				testRepo repository.TestRepository,
				questionRepo repository.QuestionRepository,
				sessionRepo repository.SessionRepository,
				userRepo repository.UserRepository,
				policy service.SessionPolicy,
				db *gorm.DB,
			) service.TestBuilderService {
				return service.NewTestBuilderService(testRepo, questionRepo, sessionRepo, userRepo, policy.MaxResumeAttempts, db)
			},
			service.NewAnswerService,
			service.NewLifecycleService,
		),

		fx.Provide(controller.NewTestController),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewSessionPolicy(cfg *config.Config) service.SessionPolicy {
	return service.SessionPolicy{
		InactivityTimeout: time.Duration(cfg.Session.InactivityTimeoutMinutes) * time.Minute,
		ResumeWindow:      time.Duration(cfg.Session.ResumeWindowMinutes) * time.Minute,
		MaxResumeAttempts: cfg.Session.MaxResumeAttempts,
	}
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	testCtrl *controller.TestController,
) {
	api := router.Group("/api/v1")
	api.Use(controller.CallerMiddleware())
	{
		tests := api.Group("/tests")
		tests.POST("", testCtrl.CreateTest)
		tests.GET("/:test_id", testCtrl.GetTest)
		tests.POST("/:test_id/answers", testCtrl.SubmitAnswer)
		tests.POST("/:test_id/heartbeat", testCtrl.Heartbeat)
		tests.POST("/:test_id/pause", testCtrl.Pause)
		tests.POST("/:test_id/resume", testCtrl.Resume)
		tests.POST("/:test_id/complete", testCtrl.Complete)
		tests.GET("/:test_id/status", testCtrl.Status)
		tests.GET("/:test_id/results", testCtrl.Results)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Prepwise quiz session API starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.User{},
		&model.Question{},
		&model.Option{},
		&model.Test{},
		&model.TestQuestion{},
		&model.Answer{},
		&model.QuestionScore{},
		&model.TestSession{},
		&model.StatusEvent{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
