package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/gorm"

  "github.com/rowanvale/compass-backend/internal/catalog"
  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/repos"
  "github.com/rowanvale/compass-backend/internal/types"
)

type GenerationService interface {
  // Generate drives one artifact pending → generating → complete|error. The
  // claim is a compare-and-set, so concurrent callers on the same artifact
  // are harmless: exactly one proceeds.
  Generate(ctx context.Context, artifactID uuid.UUID) error

  // StartWorker runs the background loop that picks up pending artifacts and
  // reclaims rows stuck in generating. Returns immediately; the loop stops
  // when ctx is cancelled.
  StartWorker(ctx context.Context)
}

type generationService struct {
  db  *gorm.DB
  log *logger.Logger

  artifactRepo repos.ArtifactRepo
  planRepo     repos.PlanRepo
  userRepo     repos.UserRepo

  generator ContentGenerator

  genTimeout  time.Duration
  staleAfter  time.Duration
  concurrency int
  pollEvery   time.Duration
}

func NewGenerationService(
  db *gorm.DB,
  baseLog *logger.Logger,
  artifactRepo repos.ArtifactRepo,
  planRepo repos.PlanRepo,
  userRepo repos.UserRepo,
  generator ContentGenerator,
  genTimeout time.Duration,
  staleAfter time.Duration,
  concurrency int,
) GenerationService {
  if concurrency <= 0 {
    concurrency = 4
  }
  return &generationService{
    db:           db,
    log:          baseLog.With("service", "GenerationService"),
    artifactRepo: artifactRepo,
    planRepo:     planRepo,
    userRepo:     userRepo,
    generator:    generator,
    genTimeout:   genTimeout,
    staleAfter:   staleAfter,
    concurrency:  concurrency,
    pollEvery:    1 * time.Second,
  }
}

func (gs *generationService) StartWorker(ctx context.Context) {
  go func() {
    ticker := time.NewTicker(gs.pollEvery)
    defer ticker.Stop()

    for {
      select {
      case <-ctx.Done():
        return
      case <-ticker.C:
        if reclaimed, err := gs.artifactRepo.ReclaimStale(ctx, nil, uuid.Nil, gs.staleAfter); err != nil {
          gs.log.Warn("Stale artifact reclaim failed", "error", err)
        } else if reclaimed > 0 {
          gs.log.Warn("Reclaimed artifacts stuck in generating", "count", reclaimed)
        }

        pending, err := gs.artifactRepo.ListByStatus(ctx, nil, types.ArtifactStatusPending, 20)
        if err != nil {
          gs.log.Warn("List pending artifacts failed", "error", err)
          continue
        }
        if len(pending) == 0 {
          continue
        }
        gs.generateBatch(ctx, pending)
      }
    }
  }()
}

// generateBatch fans out over a batch of pending artifacts with bounded
// concurrency. Each artifact reaches its own terminal state; one failing
// never rolls back or blocks its siblings, so the group never carries an
// error across members.
func (gs *generationService) generateBatch(ctx context.Context, pending []*types.Artifact) {
  g, gctx := errgroup.WithContext(ctx)
  g.SetLimit(gs.concurrency)
  for _, artifact := range pending {
    a := artifact
    g.Go(func() error {
      if err := gs.Generate(gctx, a.ID); err != nil {
        gs.log.Warn("Artifact generation attempt failed", "artifact_id", a.ID, "artifact_key", a.ArtifactKey, "error", err)
      }
      return nil
    })
  }
  _ = g.Wait()
}

func (gs *generationService) Generate(ctx context.Context, artifactID uuid.UUID) error {
  artifacts, err := gs.artifactRepo.GetByIDs(ctx, nil, []uuid.UUID{artifactID})
  if err != nil {
    return fmt.Errorf("load artifact: %w", err)
  }
  if len(artifacts) == 0 || artifacts[0] == nil {
    return fmt.Errorf("artifact %s: %w", artifactID, ErrNotFound)
  }
  artifact := artifacts[0]

  now := time.Now()
  claimed, err := gs.artifactRepo.TransitionStatus(ctx, nil, artifact.ID,
    []string{types.ArtifactStatusPending},
    types.ArtifactStatusGenerating,
    map[string]interface{}{"started_at": now})
  if err != nil {
    return fmt.Errorf("claim artifact: %w", err)
  }
  if !claimed {
    // Another worker holds it, or it already reached a terminal state.
    return nil
  }

  content, genErr := gs.invokeGenerator(ctx, artifact)
  if genErr != nil {
    gs.finish(artifact, types.ArtifactStatusError, map[string]interface{}{
      "error":       genErr.Error(),
      "finished_at": time.Now(),
    })
    return genErr
  }

  gs.finish(artifact, types.ArtifactStatusComplete, map[string]interface{}{
    "content":     content,
    "error":       "",
    "finished_at": time.Now(),
  })
  return nil
}

func (gs *generationService) invokeGenerator(ctx context.Context, artifact *types.Artifact) (string, error) {
  kind, ok := catalog.ByKey(artifact.ArtifactKey)
  if !ok {
    return "", fmt.Errorf("artifact key %q not in catalog", artifact.ArtifactKey)
  }

  plans, err := gs.planRepo.GetByIDs(ctx, nil, []uuid.UUID{artifact.PlanID})
  if err != nil {
    return "", fmt.Errorf("load plan: %w", err)
  }
  if len(plans) == 0 || plans[0] == nil {
    return "", fmt.Errorf("plan %s: %w", artifact.PlanID, ErrNotFound)
  }

  input := GenerationInput{UserID: plans[0].UserID}
  users, err := gs.userRepo.GetByIDs(ctx, nil, []uuid.UUID{plans[0].UserID})
  if err == nil && len(users) > 0 && users[0] != nil {
    input.FirstName = users[0].FirstName
    input.LastName = users[0].LastName
    input.Email = users[0].Email
  }

  callCtx := ctx
  if gs.genTimeout > 0 {
    var cancel context.CancelFunc
    callCtx, cancel = context.WithTimeout(ctx, gs.genTimeout)
    defer cancel()
  }
  return gs.generator.GenerateArtifact(callCtx, kind, input)
}

// finish moves a claimed artifact to its terminal state. Deliberately not
// bound to the request context: a cancelled generation must still land in
// error rather than sit in generating until the watchdog finds it.
func (gs *generationService) finish(artifact *types.Artifact, status string, updates map[string]interface{}) {
  ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
  defer cancel()
  ok, err := gs.artifactRepo.TransitionStatus(ctx, nil, artifact.ID,
    []string{types.ArtifactStatusGenerating}, status, updates)
  if err != nil {
    gs.log.Error("Terminal transition failed", "artifact_id", artifact.ID, "to", status, "error", err)
    return
  }
  if !ok {
    gs.log.Warn("Artifact left generating before terminal write, likely reclaimed", "artifact_id", artifact.ID, "to", status)
  }
}
