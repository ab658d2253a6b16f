package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/rowanvale/compass-backend/internal/handlers"
  "github.com/rowanvale/compass-backend/internal/journey"
  "github.com/rowanvale/compass-backend/internal/middleware"
)

type RouterConfig struct {
  AuthMiddleware    *middleware.AuthMiddleware
  JourneyGate       *middleware.JourneyGate
  JourneyHandler    *handlers.JourneyHandler
  CompletionHandler *handlers.CompletionHandler
  PlanHandler       *handlers.PlanHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)

// ===============
// || Protected ||
// ===============
  protected := router.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // Journey
  protected.GET("/journey", cfg.JourneyHandler.GetJourney)
  protected.GET("/completion", cfg.CompletionHandler.GetCompletion)
  // Stage completion events
  protected.POST("/interview/complete", cfg.CompletionHandler.MarkInterviewComplete)
  protected.POST("/payment/verified", cfg.CompletionHandler.MarkPaymentVerified)
  protected.POST("/modules/:n/complete", cfg.CompletionHandler.MarkModuleComplete)
  // Serious plan
  plan := protected.Group("/serious-plan")
  plan.POST("", cfg.JourneyGate.Require(journey.StepGraduation), cfg.PlanHandler.CreatePlan)
  plan.GET("/latest", cfg.PlanHandler.GetLatestPlan)
  plan.POST("/ensure-artifacts", cfg.PlanHandler.EnsureArtifacts)
  plan.POST("/artifacts/:key/regenerate", cfg.PlanHandler.RegenerateArtifact)

  return router
}
