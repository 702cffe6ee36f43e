package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postpulse/configs"
	"github.com/maheshrc27/postpulse/internal/api/handlers"
	"github.com/maheshrc27/postpulse/internal/api/middleware"
	"github.com/maheshrc27/postpulse/internal/cache"
	job "github.com/maheshrc27/postpulse/internal/jobs"
	"github.com/maheshrc27/postpulse/internal/logger"
	"github.com/maheshrc27/postpulse/internal/metrics"
	"github.com/maheshrc27/postpulse/internal/queue"
	"github.com/maheshrc27/postpulse/internal/repository"
	"github.com/maheshrc27/postpulse/internal/service"
	"github.com/maheshrc27/postpulse/internal/xclient"
	"github.com/robfig/cron"
	"github.com/rs/zerolog"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("no .env file loaded")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer closeDB(db, log)

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("database is unreachable")
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	ctx := context.Background()

	postRepo := repository.NewPostRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	historyRepo := repository.NewPostingHistoryRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	metricsCache := cache.NewMetricsCache(cfg.CacheTTL, log)
	xClient := xclient.NewHTTPClient(cfg.X)

	mediaService, err := service.NewMediaService(ctx, cfg.R2)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure object storage")
	}

	jobQueue := queue.NewJobQueue(client, inspector, cfg.QueueName, log)
	credentialProvider := service.NewCredentialProvider(*cfg, socialAccountRepo, log)
	scheduler := service.NewPostScheduler(jobQueue, postRepo, log)
	postService := service.NewPostService(postRepo, historyRepo, scheduler, log)
	collector := service.NewEngagementCollector(xClient, engagementRepo, log)
	engagementService := service.NewEngagementService(engagementRepo, collector, credentialProvider, metricsCache, log)

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey, cfg.CookieName, log)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/update", post.UpdatePost)
	api.Post("/posts/remove", post.RemovePost)
	api.Post("/posts/publish", post.PublishNow)
	api.Get("/posts/history", post.PostHistory)

	handlers.NewEngagementHandler(engagementService).Register(api)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, credentialProvider, log)
	engagementRefreshJob := job.NewEngagementRefreshJob(socialAccountRepo, jobQueue, cfg.EngagementRefreshLimit, log)
	cacheSweepJob := job.NewCacheSweepJob(metricsCache, log)

	c := cron.New()
	mustAddCron(c, cfg.TokenRefreshSpec, refreshTokenJob.RefreshTokens, log)
	mustAddCron(c, cfg.EngagementRefreshSpec, engagementRefreshJob.EnqueueRefreshes, log)
	mustAddCron(c, "@every 1m", cacheSweepJob.Sweep, log)
	c.Start()
	defer c.Stop()

	// queue
	worker := queue.NewQueue(postRepo, engagementRepo, historyRepo, credentialProvider, mediaService, xClient, engagementService, log)

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:    cfg.WorkerConcurrency,
		Queues:         map[string]int{cfg.QueueName: 1},
		RetryDelayFunc: queue.RetryDelay,
		Logger:         asynqLogger{log.With().Str("component", "asynq").Logger()},
	})
	mux := asynq.NewServeMux()
	worker.Register(mux)

	go func() {
		log.Info().Msg("starting the asynq server")
		if err := server.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("could not start asynq server")
		}
	}()

	metricsServer := metrics.StartServer(cfg.MetricsAddr)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("addr", cfg.HTTPAddr).Msg("server is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("failed to shut down http server")
	}
	server.Shutdown()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	log.Info().Msg("shutdown complete")
}

func mustAddCron(c *cron.Cron, spec string, fn func(), log zerolog.Logger) {
	if err := c.AddFunc(spec, fn); err != nil {
		log.Fatal().Err(err).Str("spec", spec).Msg("invalid cron spec")
	}
}

func closeDB(db *sql.DB, log zerolog.Logger) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
		return
	}
	log.Info().Msg("database connection closed")
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(sprint(args)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(sprint(args)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(sprint(args)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(sprint(args)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(sprint(args)) }

func sprint(args []interface{}) string {
	return fmt.Sprint(args...)
}
