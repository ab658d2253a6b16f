package services

import (
  "context"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  redisclient "github.com/rowanvale/compass-backend/internal/clients/redis"
  "github.com/rowanvale/compass-backend/internal/catalog"
  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/repos"
  "github.com/rowanvale/compass-backend/internal/types"
)

type EnsureResult struct {
  PlanID       uuid.UUID `json:"plan_id"`
  Created      bool      `json:"created"`
  ArtifactKeys []string  `json:"artifact_keys"`
}

type ArtifactView struct {
  ID               uuid.UUID `json:"id"`
  ArtifactKey      string    `json:"artifact_key"`
  GenerationStatus string    `json:"generation_status"`
  Content          *string   `json:"content"`
  Error            string    `json:"error,omitempty"`
}

type PlanView struct {
  ID        uuid.UUID      `json:"id"`
  Status    string         `json:"status"`
  CreatedAt time.Time      `json:"created_at"`
  Artifacts []ArtifactView `json:"artifacts"`
}

type PlanService interface {
  // EnsureArtifacts is the idempotent create/repair entry point: at most one
  // plan per user, exactly one artifact row per catalog kind. force resets
  // terminal artifacts back to pending. Every call also reclaims rows stuck
  // in generating past the stale threshold.
  EnsureArtifacts(ctx context.Context, userID uuid.UUID, forceRegenerate bool) (*EnsureResult, error)

  // RegenerateArtifact resets a single terminal artifact back to pending.
  RegenerateArtifact(ctx context.Context, userID uuid.UUID, artifactKey string) error

  // GetPlan returns the plan with its artifacts in stable key order and the
  // overall status derived from them.
  GetPlan(ctx context.Context, userID uuid.UUID) (*PlanView, error)
}

type planService struct {
  db  *gorm.DB
  log *logger.Logger

  planRepo       repos.PlanRepo
  artifactRepo   repos.ArtifactRepo
  completionRepo repos.CompletionRepo

  // nil when redis is not configured; the unique constraints still prevent
  // duplicate plans, the lock only avoids doing the racing work twice.
  locker redisclient.UserLocker

  staleAfter time.Duration
}

func NewPlanService(
  db *gorm.DB,
  baseLog *logger.Logger,
  planRepo repos.PlanRepo,
  artifactRepo repos.ArtifactRepo,
  completionRepo repos.CompletionRepo,
  locker redisclient.UserLocker,
  staleAfter time.Duration,
) PlanService {
  return &planService{
    db:             db,
    log:            baseLog.With("service", "PlanService"),
    planRepo:       planRepo,
    artifactRepo:   artifactRepo,
    completionRepo: completionRepo,
    locker:         locker,
    staleAfter:     staleAfter,
  }
}

func (ps *planService) EnsureArtifacts(ctx context.Context, userID uuid.UUID, forceRegenerate bool) (*EnsureResult, error) {
  if userID == uuid.Nil {
    return nil, fmt.Errorf("missing user id")
  }

  rec, err := ps.completionRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("load completion record: %w", err)
  }
  if rec == nil || !rec.InterviewComplete {
    return nil, fmt.Errorf("interview not complete for user %s: %w", userID, ErrNotReady)
  }

  if ps.locker != nil {
    release, lErr := ps.locker.Acquire(ctx, userID)
    if lErr != nil {
      ps.log.Warn("Ensure lock not acquired, relying on unique constraints", "user_id", userID, "error", lErr)
    } else {
      defer release()
    }
  }

  existing, err := ps.planRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("load plan: %w", err)
  }
  if existing != nil {
    result, err := ps.repairExisting(ctx, existing, forceRegenerate)
    if err != nil {
      return nil, err
    }
    // A plan row with has_plan still unset means an earlier flag write was
    // lost. The flag is monotone, so every ensure retries it until it lands.
    if !rec.HasPlan {
      if mErr := ps.completionRepo.MarkComplete(ctx, nil, userID, repos.FlagHasPlan); mErr != nil {
        ps.log.Warn("Failed to set has_plan during plan repair", "user_id", userID, "error", mErr)
      }
    }
    return result, nil
  }

  result, err := ps.createPlan(ctx, userID)
  if err != nil {
    return nil, err
  }

  // has_plan lags plan creation: the flag is advisory journey state, the
  // plan row is the source of truth.
  if mErr := ps.completionRepo.MarkComplete(ctx, nil, userID, repos.FlagHasPlan); mErr != nil {
    ps.log.Warn("Failed to set has_plan after plan creation", "user_id", userID, "error", mErr)
  }
  return result, nil
}

func (ps *planService) createPlan(ctx context.Context, userID uuid.UUID) (*EnsureResult, error) {
  kinds := catalog.Kinds()
  now := time.Now()
  plan := &types.Plan{
    ID:        uuid.New(),
    UserID:    userID,
    Metadata:  datatypes.JSON([]byte(fmt.Sprintf(`{"catalog_size":%d}`, len(kinds)))),
    CreatedAt: now,
    UpdatedAt: now,
  }

  artifacts := make([]*types.Artifact, 0, len(kinds))
  keys := make([]string, 0, len(kinds))
  for _, kind := range kinds {
    artifacts = append(artifacts, &types.Artifact{
      ID:               uuid.New(),
      PlanID:           plan.ID,
      ArtifactKey:      kind.Key,
      GenerationStatus: types.ArtifactStatusPending,
      CreatedAt:        now,
      UpdatedAt:        now,
    })
    keys = append(keys, kind.Key)
  }

  err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := ps.planRepo.Create(ctx, tx, []*types.Plan{plan}); err != nil {
      return fmt.Errorf("create plan: %w", err)
    }
    if _, err := ps.artifactRepo.Create(ctx, tx, artifacts); err != nil {
      return fmt.Errorf("create artifacts: %w", err)
    }
    return nil
  })
  if err != nil {
    // A concurrent ensure won the unique index on plan.user_id; the whole
    // transaction rolled back, so no partial artifact set exists. Return the
    // winner's plan.
    if errors.Is(err, gorm.ErrDuplicatedKey) {
      winner, rErr := ps.planRepo.GetByUserID(ctx, nil, userID)
      if rErr != nil {
        return nil, fmt.Errorf("re-read plan after race: %w", rErr)
      }
      if winner != nil {
        return ps.repairExisting(ctx, winner, false)
      }
    }
    return nil, err
  }

  ps.log.Info("Created plan with artifact catalog", "user_id", userID, "plan_id", plan.ID, "artifacts", len(artifacts))
  return &EnsureResult{PlanID: plan.ID, Created: true, ArtifactKeys: keys}, nil
}

func (ps *planService) repairExisting(ctx context.Context, plan *types.Plan, forceRegenerate bool) (*EnsureResult, error) {
  if reclaimed, err := ps.artifactRepo.ReclaimStale(ctx, nil, plan.ID, ps.staleAfter); err != nil {
    ps.log.Warn("Stale artifact reclaim failed", "plan_id", plan.ID, "error", err)
  } else if reclaimed > 0 {
    ps.log.Warn("Reclaimed artifacts stuck in generating", "plan_id", plan.ID, "count", reclaimed)
  }

  if forceRegenerate {
    reset, err := ps.artifactRepo.ResetTerminal(ctx, nil, plan.ID, nil)
    if err != nil {
      return nil, fmt.Errorf("reset terminal artifacts: %w", err)
    }
    ps.log.Info("Force regenerate reset artifacts", "plan_id", plan.ID, "count", reset)
  }

  artifacts, err := ps.artifactRepo.GetByPlanID(ctx, nil, plan.ID)
  if err != nil {
    return nil, fmt.Errorf("load artifacts: %w", err)
  }

  // Backfill any catalog kind missing its row (e.g. the catalog grew or an
  // older repair was interrupted). Insert only the gaps; the composite
  // unique index rejects duplicates if two repairs race.
  have := make(map[string]bool, len(artifacts))
  for _, a := range artifacts {
    have[a.ArtifactKey] = true
  }
  now := time.Now()
  var missing []*types.Artifact
  for _, kind := range catalog.Kinds() {
    if !have[kind.Key] {
      missing = append(missing, &types.Artifact{
        ID:               uuid.New(),
        PlanID:           plan.ID,
        ArtifactKey:      kind.Key,
        GenerationStatus: types.ArtifactStatusPending,
        CreatedAt:        now,
        UpdatedAt:        now,
      })
    }
  }
  if len(missing) > 0 {
    if _, err := ps.artifactRepo.Create(ctx, nil, missing); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
      return nil, fmt.Errorf("backfill missing artifacts: %w", err)
    }
    artifacts, err = ps.artifactRepo.GetByPlanID(ctx, nil, plan.ID)
    if err != nil {
      return nil, fmt.Errorf("reload artifacts: %w", err)
    }
  }

  keys := make([]string, 0, len(artifacts))
  for _, a := range artifacts {
    keys = append(keys, a.ArtifactKey)
  }
  return &EnsureResult{PlanID: plan.ID, Created: false, ArtifactKeys: keys}, nil
}

func (ps *planService) RegenerateArtifact(ctx context.Context, userID uuid.UUID, artifactKey string) error {
  if _, ok := catalog.ByKey(artifactKey); !ok {
    return fmt.Errorf("unknown artifact key %q", artifactKey)
  }
  plan, err := ps.planRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return fmt.Errorf("load plan: %w", err)
  }
  if plan == nil {
    return fmt.Errorf("plan for user %s: %w", userID, ErrNotFound)
  }
  if _, err := ps.artifactRepo.ResetTerminal(ctx, nil, plan.ID, []string{artifactKey}); err != nil {
    return fmt.Errorf("reset artifact %s: %w", artifactKey, err)
  }
  return nil
}

func (ps *planService) GetPlan(ctx context.Context, userID uuid.UUID) (*PlanView, error) {
  plan, err := ps.planRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("load plan: %w", err)
  }
  if plan == nil {
    return nil, fmt.Errorf("plan for user %s: %w", userID, ErrNotFound)
  }
  artifacts, err := ps.artifactRepo.GetByPlanID(ctx, nil, plan.ID)
  if err != nil {
    return nil, fmt.Errorf("load artifacts: %w", err)
  }

  views := make([]ArtifactView, 0, len(artifacts))
  for _, a := range artifacts {
    views = append(views, ArtifactView{
      ID:               a.ID,
      ArtifactKey:      a.ArtifactKey,
      GenerationStatus: a.GenerationStatus,
      Content:          a.Content,
      Error:            a.Error,
    })
  }

  return &PlanView{
    ID:        plan.ID,
    Status:    DerivePlanStatus(artifacts),
    CreatedAt: plan.CreatedAt,
    Artifacts: views,
  }, nil
}

// DerivePlanStatus computes the overall plan status from per-artifact
// statuses. Policy for mixed terminal outcomes: a plan is usable once any
// artifact completed, so it reads as ready with partial results; error is
// reserved for every artifact having errored.
func DerivePlanStatus(artifacts []*types.Artifact) string {
  if len(artifacts) == 0 {
    return types.PlanStatusPending
  }
  complete := 0
  for _, a := range artifacts {
    switch a.GenerationStatus {
    case types.ArtifactStatusComplete:
      complete++
    case types.ArtifactStatusError:
    default:
      return types.PlanStatusGenerating
    }
  }
  if complete > 0 {
    return types.PlanStatusReady
  }
  return types.PlanStatusError
}
