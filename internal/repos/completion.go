package repos

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/types"
)

// Completion flag columns that MarkComplete may touch. Flags are monotonic:
// there is deliberately no mutator that sets one back to false.
const (
  FlagInterviewComplete = "interview_complete"
  FlagPaymentVerified   = "payment_verified"
  FlagModule1Complete   = "module1_complete"
  FlagModule2Complete   = "module2_complete"
  FlagModule3Complete   = "module3_complete"
  FlagHasPlan           = "has_plan"
)

var completionFlags = map[string]bool{
  FlagInterviewComplete: true,
  FlagPaymentVerified:   true,
  FlagModule1Complete:   true,
  FlagModule2Complete:   true,
  FlagModule3Complete:   true,
  FlagHasPlan:           true,
}

type CompletionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, recs []*types.CompletionRecord) ([]*types.CompletionRecord, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.CompletionRecord, error)
  MarkComplete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, flag string) error
}

type completionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCompletionRepo(db *gorm.DB, baseLog *logger.Logger) CompletionRepo {
  repoLog := baseLog.With("repo", "CompletionRepo")
  return &completionRepo{db: db, log: repoLog}
}

func (r *completionRepo) Create(ctx context.Context, tx *gorm.DB, recs []*types.CompletionRecord) ([]*types.CompletionRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(recs) == 0 {
    return []*types.CompletionRecord{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&recs).Error; err != nil {
    return nil, err
  }
  return recs, nil
}

func (r *completionRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.CompletionRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if userID == uuid.Nil {
    return nil, nil
  }
  var rec types.CompletionRecord
  err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Limit(1).
    Find(&rec).Error
  if err != nil {
    return nil, err
  }
  if rec.ID == uuid.Nil {
    return nil, nil
  }
  return &rec, nil
}

func (r *completionRepo) MarkComplete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, flag string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if userID == uuid.Nil {
    return fmt.Errorf("missing user id")
  }
  if !completionFlags[flag] {
    return fmt.Errorf("unknown completion flag %q", flag)
  }
  return transaction.WithContext(ctx).
    Model(&types.CompletionRecord{}).
    Where("user_id = ?", userID).
    Updates(map[string]interface{}{
      flag:         true,
      "updated_at": time.Now(),
    }).Error
}
