package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/types"
)

type PlanRepo interface {
  Create(ctx context.Context, tx *gorm.DB, plans []*types.Plan) ([]*types.Plan, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Plan, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Plan, error)
}

type planRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPlanRepo(db *gorm.DB, baseLog *logger.Logger) PlanRepo {
  repoLog := baseLog.With("repo", "PlanRepo")
  return &planRepo{db: db, log: repoLog}
}

func (r *planRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.Plan) ([]*types.Plan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(plans) == 0 {
    return []*types.Plan{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
    return nil, err
  }
  return plans, nil
}

func (r *planRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Plan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Plan
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *planRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Plan, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if userID == uuid.Nil {
    return nil, nil
  }
  var plan types.Plan
  err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Limit(1).
    Find(&plan).Error
  if err != nil {
    return nil, err
  }
  if plan.ID == uuid.Nil {
    return nil, nil
  }
  return &plan, nil
}
