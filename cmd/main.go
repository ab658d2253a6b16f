package main

import (
  "context"
  "fmt"
  "os"
  "time"

  redisclient "github.com/rowanvale/compass-backend/internal/clients/redis"
  "github.com/rowanvale/compass-backend/internal/db"
  "github.com/rowanvale/compass-backend/internal/handlers"
  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/middleware"
  "github.com/rowanvale/compass-backend/internal/repos"
  "github.com/rowanvale/compass-backend/internal/server"
  "github.com/rowanvale/compass-backend/internal/services"
  "github.com/rowanvale/compass-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  genTimeout := utils.GetEnvAsDuration("GENERATION_TIMEOUT", 3*time.Minute, log)
  staleAfter := utils.GetEnvAsDuration("GENERATION_STALE_AFTER", 5*time.Minute, log)
  genConcurrency := utils.GetEnvAsInt("GENERATION_CONCURRENCY", 4, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  completionRepo := repos.NewCompletionRepo(thePG, log)
  planRepo := repos.NewPlanRepo(thePG, log)
  artifactRepo := repos.NewArtifactRepo(thePG, log)

  // Redis ensure lock (optional; unique constraints still hold without it)
  var locker redisclient.UserLocker
  if l, lErr := redisclient.NewUserLocker(log); lErr != nil {
    log.Warn("Redis user locker unavailable, continuing without it", "error", lErr)
  } else {
    locker = l
    defer locker.Close()
  }

  // Services
  log.Info("Setting up Services from main...")
  generator, err := services.NewOpenAIGenerator(log)
  if err != nil {
    log.Error("Could not init OpenAIGenerator", "error", err)
    os.Exit(1)
  }
  authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey)
  completionService := services.NewCompletionService(thePG, log, completionRepo)
  planService := services.NewPlanService(thePG, log, planRepo, artifactRepo, completionRepo, locker, staleAfter)
  generationService := services.NewGenerationService(thePG, log, artifactRepo, planRepo, userRepo, generator, genTimeout, staleAfter, genConcurrency)
  generationService.StartWorker(context.Background())

  // Handlers
  log.Info("Setting up handlers from main...")
  journeyHandler := handlers.NewJourneyHandler(completionService)
  completionHandler := handlers.NewCompletionHandler(completionService)
  planHandler := handlers.NewPlanHandler(planService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)
  journeyGate := middleware.NewJourneyGate(log, completionService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthMiddleware:    authMiddleware,
    JourneyGate:       journeyGate,
    JourneyHandler:    journeyHandler,
    CompletionHandler: completionHandler,
    PlanHandler:       planHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
