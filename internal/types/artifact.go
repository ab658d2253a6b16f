package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ArtifactStatusPending    = "pending"
	ArtifactStatusGenerating = "generating"
	ArtifactStatusComplete   = "complete"
	ArtifactStatusError      = "error"
)

// Artifact is one independently generated unit of plan content. Exactly one
// row per (plan_id, artifact_key); Content is non-nil iff the status is
// complete.
type Artifact struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_artifact_plan_key,priority:1" json:"plan_id"`
	ArtifactKey      string         `gorm:"column:artifact_key;not null;uniqueIndex:idx_artifact_plan_key,priority:2" json:"artifact_key"`
	GenerationStatus string         `gorm:"column:generation_status;not null;index" json:"generation_status"`
	Content          *string        `gorm:"column:content" json:"content"`
	Error            string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt        *time.Time     `gorm:"column:started_at;index" json:"started_at,omitempty"`
	FinishedAt       *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Artifact) TableName() string { return "artifact" }

// IsTerminal reports whether the status admits no further automatic
// transition.
func IsTerminal(status string) bool {
	return status == ArtifactStatusComplete || status == ArtifactStatusError
}
