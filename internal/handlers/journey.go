package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/rowanvale/compass-backend/internal/requestdata"
  "github.com/rowanvale/compass-backend/internal/services"
)

type JourneyHandler struct {
  completionService services.CompletionService
}

func NewJourneyHandler(completionService services.CompletionService) *JourneyHandler {
  return &JourneyHandler{completionService: completionService}
}

// GET /journey
func (h *JourneyHandler) GetJourney(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
    return
  }
  resolution, err := h.completionService.ResolveJourney(c.Request.Context(), rd.UserID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "journey_resolve_failed", err)
    return
  }
  RespondOK(c, resolution)
}
