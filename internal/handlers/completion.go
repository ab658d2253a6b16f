package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/rowanvale/compass-backend/internal/journey"
  "github.com/rowanvale/compass-backend/internal/repos"
  "github.com/rowanvale/compass-backend/internal/requestdata"
  "github.com/rowanvale/compass-backend/internal/services"
)

type CompletionHandler struct {
  completionService services.CompletionService
}

func NewCompletionHandler(completionService services.CompletionService) *CompletionHandler {
  return &CompletionHandler{completionService: completionService}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
    return uuid.Nil, false
  }
  return rd.UserID, true
}

// GET /completion
func (h *CompletionHandler) GetCompletion(c *gin.Context) {
  userID, ok := callerID(c)
  if !ok {
    return
  }
  rec, err := h.completionService.GetOrCreate(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "completion_load_failed", err)
    return
  }
  RespondOK(c, gin.H{"completion": rec})
}

// POST /interview/complete
func (h *CompletionHandler) MarkInterviewComplete(c *gin.Context) {
  h.mark(c, journey.StepInterview, repos.FlagInterviewComplete)
}

// POST /payment/verified records the flag only; verification itself
// happens upstream with the payment provider.
func (h *CompletionHandler) MarkPaymentVerified(c *gin.Context) {
  h.mark(c, journey.StepPaywall, repos.FlagPaymentVerified)
}

// POST /modules/:n/complete
func (h *CompletionHandler) MarkModuleComplete(c *gin.Context) {
  switch c.Param("n") {
  case "1":
    h.mark(c, journey.StepModule1, repos.FlagModule1Complete)
  case "2":
    h.mark(c, journey.StepModule2, repos.FlagModule2Complete)
  case "3":
    h.mark(c, journey.StepModule3, repos.FlagModule3Complete)
  default:
    RespondError(c, http.StatusBadRequest, "invalid_module", fmt.Errorf("unknown module %q", c.Param("n")))
  }
}

// mark completes a stage. The stage must be at or before the user's current
// step (the same journey.Allowed rule the page gates use) so a client
// cannot skip ahead by posting completions out of order. Marking an already
// complete stage is a no-op (flags are monotonic), not an error.
func (h *CompletionHandler) mark(c *gin.Context, step journey.Step, flag string) {
  userID, ok := callerID(c)
  if !ok {
    return
  }
  resolution, err := h.completionService.ResolveJourney(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "journey_resolve_failed", err)
    return
  }
  if !journey.Allowed(step, resolution.Step) {
    c.Header("Location", resolution.Path)
    c.JSON(http.StatusSeeOther, gin.H{"step": resolution.Step, "current_path": resolution.Path})
    return
  }
  rec, err := h.completionService.MarkComplete(c.Request.Context(), userID, flag)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "completion_update_failed", err)
    return
  }
  RespondOK(c, gin.H{"completion": rec})
}
