package services

import (
  "context"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rowanvale/compass-backend/internal/journey"
  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/repos"
  "github.com/rowanvale/compass-backend/internal/types"
)

type CompletionService interface {
  // GetOrCreate returns the user's completion record, creating an all-false
  // row on first touch.
  GetOrCreate(ctx context.Context, userID uuid.UUID) (*types.CompletionRecord, error)

  // MarkComplete flips one flag to true. Flags are monotonic; there is no
  // inverse operation.
  MarkComplete(ctx context.Context, userID uuid.UUID, flag string) (*types.CompletionRecord, error)

  // ResolveJourney derives the user's current step and canonical path.
  ResolveJourney(ctx context.Context, userID uuid.UUID) (journey.Resolution, error)
}

type completionService struct {
  db             *gorm.DB
  log            *logger.Logger
  completionRepo repos.CompletionRepo
}

func NewCompletionService(db *gorm.DB, baseLog *logger.Logger, completionRepo repos.CompletionRepo) CompletionService {
  return &completionService{
    db:             db,
    log:            baseLog.With("service", "CompletionService"),
    completionRepo: completionRepo,
  }
}

func (cs *completionService) GetOrCreate(ctx context.Context, userID uuid.UUID) (*types.CompletionRecord, error) {
  if userID == uuid.Nil {
    return nil, fmt.Errorf("missing user id")
  }
  rec, err := cs.completionRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("load completion record: %w", err)
  }
  if rec != nil {
    return rec, nil
  }

  now := time.Now()
  rec = &types.CompletionRecord{
    ID:        uuid.New(),
    UserID:    userID,
    CreatedAt: now,
    UpdatedAt: now,
  }
  if _, err := cs.completionRepo.Create(ctx, nil, []*types.CompletionRecord{rec}); err != nil {
    // Two first touches can race; the unique index on user_id decides and we
    // return the winner's row.
    if errors.Is(err, gorm.ErrDuplicatedKey) {
      existing, rErr := cs.completionRepo.GetByUserID(ctx, nil, userID)
      if rErr != nil {
        return nil, fmt.Errorf("re-read completion record after race: %w", rErr)
      }
      if existing != nil {
        return existing, nil
      }
    }
    return nil, fmt.Errorf("create completion record: %w", err)
  }
  return rec, nil
}

func (cs *completionService) MarkComplete(ctx context.Context, userID uuid.UUID, flag string) (*types.CompletionRecord, error) {
  if _, err := cs.GetOrCreate(ctx, userID); err != nil {
    return nil, err
  }
  if err := cs.completionRepo.MarkComplete(ctx, nil, userID, flag); err != nil {
    return nil, fmt.Errorf("mark %s: %w", flag, err)
  }
  rec, err := cs.completionRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("reload completion record: %w", err)
  }
  return rec, nil
}

func (cs *completionService) ResolveJourney(ctx context.Context, userID uuid.UUID) (journey.Resolution, error) {
  rec, err := cs.GetOrCreate(ctx, userID)
  if err != nil {
    return journey.Resolution{}, err
  }
  return journey.Resolve(*rec), nil
}
