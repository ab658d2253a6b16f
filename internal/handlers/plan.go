package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/rowanvale/compass-backend/internal/services"
)

type PlanHandler struct {
  planService services.PlanService
}

func NewPlanHandler(planService services.PlanService) *PlanHandler {
  return &PlanHandler{planService: planService}
}

// POST /serious-plan is idempotent plan creation for the caller.
func (h *PlanHandler) CreatePlan(c *gin.Context) {
  userID, ok := callerID(c)
  if !ok {
    return
  }
  result, err := h.planService.EnsureArtifacts(c.Request.Context(), userID, false)
  if err != nil {
    respondPlanError(c, err)
    return
  }
  RespondOK(c, gin.H{"plan_id": result.PlanID, "created": result.Created})
}

// GET /serious-plan/latest
func (h *PlanHandler) GetLatestPlan(c *gin.Context) {
  userID, ok := callerID(c)
  if !ok {
    return
  }
  plan, err := h.planService.GetPlan(c.Request.Context(), userID)
  if err != nil {
    respondPlanError(c, err)
    return
  }
  RespondOK(c, plan)
}

type ensureArtifactsRequest struct {
  UserID          string `json:"user_id"`
  ForceRegenerate bool   `json:"force_regenerate"`
}

// POST /serious-plan/ensure-artifacts is the operational/recovery path. Repairs a
// stuck or missing plan without duplicating state; a user_id in the body lets
// support repair another account.
func (h *PlanHandler) EnsureArtifacts(c *gin.Context) {
  callerUserID, ok := callerID(c)
  if !ok {
    return
  }

  var req ensureArtifactsRequest
  if c.Request.ContentLength > 0 {
    if err := c.ShouldBindJSON(&req); err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
      return
    }
  }

  userID := callerUserID
  if req.UserID != "" {
    parsed, err := uuid.Parse(req.UserID)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
      return
    }
    userID = parsed
  }

  result, err := h.planService.EnsureArtifacts(c.Request.Context(), userID, req.ForceRegenerate)
  if err != nil {
    respondPlanError(c, err)
    return
  }
  RespondOK(c, gin.H{"plan_id": result.PlanID, "created": result.Created, "artifact_keys": result.ArtifactKeys})
}

// POST /serious-plan/artifacts/:key/regenerate
func (h *PlanHandler) RegenerateArtifact(c *gin.Context) {
  userID, ok := callerID(c)
  if !ok {
    return
  }
  if err := h.planService.RegenerateArtifact(c.Request.Context(), userID, c.Param("key")); err != nil {
    respondPlanError(c, err)
    return
  }
  c.Status(http.StatusAccepted)
}

func respondPlanError(c *gin.Context, err error) {
  switch {
  case errors.Is(err, services.ErrNotReady):
    // Retryable: the prerequisite stage has not finished yet.
    RespondError(c, http.StatusConflict, "not_ready", err)
  case errors.Is(err, services.ErrNotFound):
    RespondError(c, http.StatusNotFound, "not_found", err)
  default:
    RespondError(c, http.StatusInternalServerError, "plan_operation_failed", err)
  }
}
