package services

import (
  "context"

  "github.com/google/uuid"

  "github.com/rowanvale/compass-backend/internal/catalog"
)

// GenerationInput is the user context handed to the content generator for
// each artifact.
type GenerationInput struct {
  UserID    uuid.UUID
  FirstName string
  LastName  string
  Email     string
}

// ContentGenerator produces one artifact document per call. Implementations
// are expected to be safe for concurrent use; the generation worker fans out
// across artifacts of the same plan.
type ContentGenerator interface {
  GenerateArtifact(ctx context.Context, kind catalog.Kind, input GenerationInput) (string, error)
}
