package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rowanvale/compass-backend/internal/catalog"
	"github.com/rowanvale/compass-backend/internal/logger"
	"github.com/rowanvale/compass-backend/internal/repos"
	"github.com/rowanvale/compass-backend/internal/types"
)

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{},
		&types.CompletionRecord{},
		&types.Plan{},
		&types.Artifact{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db             *gorm.DB
	userRepo       repos.UserRepo
	completionRepo repos.CompletionRepo
	planRepo       repos.PlanRepo
	artifactRepo   repos.ArtifactRepo

	completionSvc CompletionService
	planSvc       PlanService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()
	f := &fixture{
		db:             db,
		userRepo:       repos.NewUserRepo(db, log),
		completionRepo: repos.NewCompletionRepo(db, log),
		planRepo:       repos.NewPlanRepo(db, log),
		artifactRepo:   repos.NewArtifactRepo(db, log),
	}
	f.completionSvc = NewCompletionService(db, log, f.completionRepo)
	f.planSvc = NewPlanService(db, log, f.planRepo, f.artifactRepo, f.completionRepo, nil, 5*time.Minute)
	return f
}

// seedUser creates a user whose interview is complete, the minimum state for
// plan creation.
func (f *fixture) seedUser(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	user := &types.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		FirstName: "Jamie",
		LastName:  "Okafor",
	}
	if _, err := f.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := f.completionSvc.MarkComplete(ctx, user.ID, repos.FlagInterviewComplete); err != nil {
		t.Fatalf("seed interview flag: %v", err)
	}
	return user.ID
}

// staticGenerator returns canned content per kind, or an error for kinds in
// failKeys.
type staticGenerator struct {
	failKeys map[string]bool
	block    bool
}

func (g *staticGenerator) GenerateArtifact(ctx context.Context, kind catalog.Kind, input GenerationInput) (string, error) {
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if g.failKeys[kind.Key] {
		return "", fmt.Errorf("generator unavailable for %s", kind.Key)
	}
	fields := make([]string, 0, len(kind.RequiredFields))
	for _, f := range kind.RequiredFields {
		fields = append(fields, fmt.Sprintf("%q:%q", f, "generated "+f))
	}
	return "{" + strings.Join(fields, ",") + "}", nil
}
