package middleware

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/rowanvale/compass-backend/internal/journey"
  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/requestdata"
  "github.com/rowanvale/compass-backend/internal/services"
)

// JourneyGate enforces step ordering on stage pages: a request for a step
// ahead of the user's current step redirects to the current step's canonical
// path. It calls the same journey.Resolve the /journey payload is built
// from, so server gating and client redirects cannot drift.
type JourneyGate struct {
  log               *logger.Logger
  completionService services.CompletionService
}

func NewJourneyGate(log *logger.Logger, completionService services.CompletionService) *JourneyGate {
  return &JourneyGate{
    log:               log.With("middleware", "JourneyGate"),
    completionService: completionService,
  }
}

// Require gates a route on the given step.
func (jg *JourneyGate) Require(step journey.Step) gin.HandlerFunc {
  return func(c *gin.Context) {
    rd := requestdata.GetRequestData(c.Request.Context())
    if rd == nil || rd.UserID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    resolution, err := jg.completionService.ResolveJourney(c.Request.Context(), rd.UserID)
    if err != nil {
      c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
      return
    }
    if !journey.Allowed(step, resolution.Step) {
      jg.log.Debug("Journey gate redirect", "user_id", rd.UserID, "requested", step, "current", resolution.Step)
      c.Header("Location", resolution.Path)
      c.AbortWithStatusJSON(http.StatusSeeOther, gin.H{"step": resolution.Step, "current_path": resolution.Path})
      return
    }
    c.Next()
  }
}
