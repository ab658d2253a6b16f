package types

import (
	"time"

	"github.com/google/uuid"
)

// CompletionRecord is the ground truth for journey progression. One row per
// user; flags are monotonic, the repo only ever flips them to true.
type CompletionRecord struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	InterviewComplete bool      `gorm:"column:interview_complete;not null;default:false" json:"interview_complete"`
	PaymentVerified   bool      `gorm:"column:payment_verified;not null;default:false" json:"payment_verified"`
	Module1Complete   bool      `gorm:"column:module1_complete;not null;default:false" json:"module1_complete"`
	Module2Complete   bool      `gorm:"column:module2_complete;not null;default:false" json:"module2_complete"`
	Module3Complete   bool      `gorm:"column:module3_complete;not null;default:false" json:"module3_complete"`
	HasPlan           bool      `gorm:"column:has_plan;not null;default:false" json:"has_plan"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

func (CompletionRecord) TableName() string { return "completion_record" }
