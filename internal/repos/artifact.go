package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/types"
)

type ArtifactRepo interface {
  Create(ctx context.Context, tx *gorm.DB, artifacts []*types.Artifact) ([]*types.Artifact, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Artifact, error)

  // GetByPlanID returns the plan's artifacts ordered by artifact_key so that
  // repeated reads with no intervening write are byte-identical.
  GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.Artifact, error)
  GetByPlanIDAndKey(ctx context.Context, tx *gorm.DB, planID uuid.UUID, key string) (*types.Artifact, error)

  // ListByStatus returns up to limit artifacts in the given status, oldest
  // first. The generation worker claims from this list.
  ListByStatus(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.Artifact, error)

  // TransitionStatus is a compare-and-set: the update applies only while the
  // row still holds one of fromStatuses. Returns false when another writer
  // moved the row first.
  TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (bool, error)

  // ResetTerminal flips complete/error rows back to pending and clears stale
  // content, error detail and transition timestamps. Used by force
  // regeneration.
  ResetTerminal(ctx context.Context, tx *gorm.DB, planID uuid.UUID, keys []string) (int64, error)

  // ReclaimStale returns generating rows whose started_at is older than the
  // cutoff to pending. A row only sits in generating past the generation
  // timeout if a crash interrupted the worker mid-call. planID uuid.Nil
  // reclaims across all plans.
  ReclaimStale(ctx context.Context, tx *gorm.DB, planID uuid.UUID, olderThan time.Duration) (int64, error)
}

type artifactRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
  repoLog := baseLog.With("repo", "ArtifactRepo")
  return &artifactRepo{db: db, log: repoLog}
}

func (r *artifactRepo) Create(ctx context.Context, tx *gorm.DB, artifacts []*types.Artifact) ([]*types.Artifact, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(artifacts) == 0 {
    return []*types.Artifact{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&artifacts).Error; err != nil {
    return nil, err
  }
  return artifacts, nil
}

func (r *artifactRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Artifact, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Artifact
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

func (r *artifactRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.Artifact, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Artifact
  if planID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("plan_id = ?", planID).
    Order("artifact_key ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *artifactRepo) GetByPlanIDAndKey(ctx context.Context, tx *gorm.DB, planID uuid.UUID, key string) (*types.Artifact, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if planID == uuid.Nil || key == "" {
    return nil, nil
  }
  var artifact types.Artifact
  err := transaction.WithContext(ctx).
    Where("plan_id = ? AND artifact_key = ?", planID, key).
    Limit(1).
    Find(&artifact).Error
  if err != nil {
    return nil, err
  }
  if artifact.ID == uuid.Nil {
    return nil, nil
  }
  return &artifact, nil
}

func (r *artifactRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.Artifact, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Artifact
  q := transaction.WithContext(ctx).
    Where("generation_status = ?", status).
    Order("created_at ASC")
  if limit > 0 {
    q = q.Limit(limit)
  }
  if err := q.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *artifactRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  fields := map[string]interface{}{
    "generation_status": toStatus,
    "updated_at":        time.Now(),
  }
  for k, v := range updates {
    fields[k] = v
  }
  res := transaction.WithContext(ctx).
    Model(&types.Artifact{}).
    Where("id = ? AND generation_status IN ?", id, fromStatuses).
    Updates(fields)
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected == 1, nil
}

func (r *artifactRepo) ResetTerminal(ctx context.Context, tx *gorm.DB, planID uuid.UUID, keys []string) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  q := transaction.WithContext(ctx).
    Model(&types.Artifact{}).
    Where("plan_id = ? AND generation_status IN ?", planID, []string{types.ArtifactStatusComplete, types.ArtifactStatusError})
  if len(keys) > 0 {
    q = q.Where("artifact_key IN ?", keys)
  }
  res := q.Updates(map[string]interface{}{
    "generation_status": types.ArtifactStatusPending,
    "content":           nil,
    "error":             "",
    "started_at":        nil,
    "finished_at":       nil,
    "updated_at":        time.Now(),
  })
  return res.RowsAffected, res.Error
}

func (r *artifactRepo) ReclaimStale(ctx context.Context, tx *gorm.DB, planID uuid.UUID, olderThan time.Duration) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  cutoff := time.Now().Add(-olderThan)
  q := transaction.WithContext(ctx).
    Model(&types.Artifact{}).
    Where("generation_status = ? AND (started_at IS NULL OR started_at < ?)", types.ArtifactStatusGenerating, cutoff)
  if planID != uuid.Nil {
    q = q.Where("plan_id = ?", planID)
  }
  res := q.Updates(map[string]interface{}{
      "generation_status": types.ArtifactStatusPending,
      "started_at":        nil,
      "updated_at":        time.Now(),
    })
  return res.RowsAffected, res.Error
}
