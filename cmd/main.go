package main

import (
	"context"
	"strconv"
	"time"

	"question-bank-backend/config"
	"question-bank-backend/middleware"
	"question-bank-backend/seeds"
	"question-bank-backend/token"
	"question-bank-backend/utils"

	question_controllers "question-bank-backend/questions/controllers"
	question_repositories "question-bank-backend/questions/repositories"
	question_routes "question-bank-backend/questions/routes"

	upload_controllers "question-bank-backend/uploads/controllers"
	upload_repositories "question-bank-backend/uploads/repositories"
	upload_routes "question-bank-backend/uploads/routes"
	upload_services "question-bank-backend/uploads/services"

	search_controllers "question-bank-backend/search/controllers"
	search_repositories "question-bank-backend/search/repositories"
	search_routes "question-bank-backend/search/routes"
	search_services "question-bank-backend/search/services"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Initialize Zap logger
	config.InitLogger()

	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		config.Logger.Warn("No .env file found, relying on process environment", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		BodyLimit: upload_services.MaxUploadBytes + 1<<20,
	})

	// Apply CORS middleware from middleware package
	middleware.InitCors(app)

	// Initialize database and configs
	db := config.ConfigureDatabase()
	port := config.GetEnvOrDefault("PORT", "8080")
	ctx := context.Background()

	redisAddr := config.GetEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	redisClient := config.InitRedisServer(ctx)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: config.GetEnv("REDIS_PASSWORD"),
		DB:       0,
	}
	asynqClient := asynq.NewClient(asynqRedisOpt)
	defer asynqClient.Close()

	tokenKey := config.GetEnv("TOKEN_SYMMETRIC_KEY")
	tokenMaker, err := token.NewPasetoMaker(tokenKey)
	if err != nil {
		config.Logger.Fatal("Cannot create token maker", zap.Error(err))
	}

	indexPath := config.GetEnvOrDefault("BLEVE_INDEX_PATH", "./bleve_data")
	baseURL := config.GetEnvOrDefault("BASE_URL", "http://localhost:"+port)
	storagePath := config.GetEnvOrDefault("FILE_STORAGE_PATH", "./storage")

	// Initialize the mailer
	utils.InitializeMailer()

	appCtx := &middleware.AppContext{
		PasetoMaker: tokenMaker,
		Ctx:         ctx,
		RedisClient: redisClient,
	}

	// Repositories and services
	fileStorage := utils.NewLocalFileStorage(storagePath)
	jobRepo := upload_repositories.NewJobRepository(db)
	questionRepo := question_repositories.NewQuestionRepository(db)

	indexingService := search_services.NewIndexingService(config.Logger, indexPath)
	searchRepo, searchRepoInterface := search_repositories.NewQuestionSearchRepository(indexingService)

	schema := upload_services.QuestionSchema()
	validator := upload_services.NewValidator(schema, questionRepo)
	dispatcher := upload_services.NewAsynqDispatcher(asynqClient)
	cancelFlags := upload_services.NewRedisCancelFlags(redisClient)

	jobManager := upload_services.NewJobManager(
		jobRepo,
		schema,
		validator,
		questionRepo,
		fileStorage,
		dispatcher,
		cancelFlags,
	).
		WithIndexer(searchRepo).
		WithMailer(upload_services.NewJobCompletionMailer(baseURL))

	// Worker pool for upload jobs
	concurrency, _ := strconv.Atoi(config.GetEnvOrDefault("UPLOAD_WORKER_CONCURRENCY", "4"))
	executorPool := upload_services.NewExecutorPool(asynqRedisOpt, jobManager, concurrency)
	go func() {
		if err := executorPool.Run(); err != nil {
			config.Logger.Fatal("Executor pool stopped", zap.Error(err))
		}
	}()

	// Routes
	uploadController := upload_controllers.NewUploadController(jobManager)
	upload_routes.InitUploadRoutes(app, uploadController, appCtx)

	questionController := question_controllers.NewQuestionController(questionRepo)
	question_routes.InitQuestionRoutes(app, questionController, appCtx)

	searchController := search_controllers.NewSearchController(searchRepoInterface)
	search_routes.InitSearchRoutes(app, searchController, appCtx)

	// Seed the default organization and the master data uploads validate
	// against.
	org, err := seeds.SeedDefaultOrganization(db)
	if err != nil {
		config.Logger.Error("Organization seeding failed", zap.Error(err))
	} else if err := seeds.SeedMasterData(db, org); err != nil {
		config.Logger.Error("Master data seeding failed", zap.Error(err))
	}

	// Background retention purge for expired jobs and artifacts
	retentionDays, _ := strconv.Atoi(config.GetEnvOrDefault("JOB_RETENTION_DAYS", "30"))
	purger := upload_services.NewRetentionPurger(jobRepo, fileStorage, time.Duration(retentionDays)*24*time.Hour)
	go purger.RunScheduled()

	// Start the application
	config.Logger.Info("Server starting", zap.String("port", port))
	config.Logger.Fatal("Server failed", zap.String("port", port), zap.Error(app.Listen(":"+port)))
}
