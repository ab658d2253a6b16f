package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rowanvale/compass-backend/internal/types"
)

func newGenerationService(f *fixture, gen ContentGenerator, timeout time.Duration) GenerationService {
	return NewGenerationService(f.db, newTestLogger(), f.artifactRepo, f.planRepo, f.userRepo, gen, timeout, 5*time.Minute, 2)
}

func ensurePlan(t *testing.T, f *fixture, userID uuid.UUID) []*types.Artifact {
	t.Helper()
	result, err := f.planSvc.EnsureArtifacts(context.Background(), userID, false)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	artifacts, err := f.artifactRepo.GetByPlanID(context.Background(), nil, result.PlanID)
	if err != nil {
		t.Fatalf("load artifacts: %v", err)
	}
	return artifacts
}

func TestGenerateHappyPath(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	artifacts := ensurePlan(t, f, userID)
	gs := newGenerationService(f, &staticGenerator{}, time.Minute)
	ctx := context.Background()

	for _, a := range artifacts {
		if err := gs.Generate(ctx, a.ID); err != nil {
			t.Fatalf("generate %s: %v", a.ArtifactKey, err)
		}
	}

	after, _ := f.artifactRepo.GetByPlanID(ctx, nil, artifacts[0].PlanID)
	for _, a := range after {
		if a.GenerationStatus != types.ArtifactStatusComplete {
			t.Fatalf("artifact %s status=%q, want complete", a.ArtifactKey, a.GenerationStatus)
		}
		if a.Content == nil || *a.Content == "" {
			t.Fatalf("complete artifact %s has no content", a.ArtifactKey)
		}
		if a.FinishedAt == nil {
			t.Fatalf("complete artifact %s has no finished_at", a.ArtifactKey)
		}
	}

	plan, err := f.planSvc.GetPlan(ctx, userID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if plan.Status != types.PlanStatusReady {
		t.Fatalf("plan status=%q, want ready", plan.Status)
	}
}

// One artifact failing must not block or roll back its siblings.
func TestGenerateFailureIsolation(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	artifacts := ensurePlan(t, f, userID)
	failKey := artifacts[0].ArtifactKey
	gs := newGenerationService(f, &staticGenerator{failKeys: map[string]bool{failKey: true}}, time.Minute)
	ctx := context.Background()

	for _, a := range artifacts {
		_ = gs.Generate(ctx, a.ID)
	}

	after, _ := f.artifactRepo.GetByPlanID(ctx, nil, artifacts[0].PlanID)
	for _, a := range after {
		if types.IsTerminal(a.GenerationStatus) == false {
			t.Fatalf("artifact %s not terminal after generation: %q", a.ArtifactKey, a.GenerationStatus)
		}
		if a.ArtifactKey == failKey {
			if a.GenerationStatus != types.ArtifactStatusError {
				t.Fatalf("failing artifact status=%q, want error", a.GenerationStatus)
			}
			if a.Content != nil {
				t.Fatal("errored artifact must not carry content")
			}
			if a.Error == "" {
				t.Fatal("errored artifact must carry failure detail")
			}
			continue
		}
		if a.GenerationStatus != types.ArtifactStatusComplete {
			t.Fatalf("sibling %s status=%q, want complete", a.ArtifactKey, a.GenerationStatus)
		}
	}

	// Partial completeness still reads as a usable plan.
	plan, err := f.planSvc.GetPlan(ctx, userID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if plan.Status != types.PlanStatusReady {
		t.Fatalf("plan status=%q, want ready with partial results", plan.Status)
	}
}

func TestGenerateTimeoutResolvesToError(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	artifacts := ensurePlan(t, f, userID)
	gs := newGenerationService(f, &staticGenerator{block: true}, 30*time.Millisecond)
	ctx := context.Background()

	if err := gs.Generate(ctx, artifacts[0].ID); err == nil {
		t.Fatal("blocked generation should report an error")
	}

	after, _ := f.artifactRepo.GetByIDs(ctx, nil, []uuid.UUID{artifacts[0].ID})
	if after[0].GenerationStatus != types.ArtifactStatusError {
		t.Fatalf("timed-out artifact status=%q, want error", after[0].GenerationStatus)
	}
}

// A second claim on the same artifact is a harmless no-op: the CAS fails and
// the existing terminal state is preserved.
func TestGenerateClaimIsCompareAndSet(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	artifacts := ensurePlan(t, f, userID)
	gs := newGenerationService(f, &staticGenerator{}, time.Minute)
	ctx := context.Background()

	if err := gs.Generate(ctx, artifacts[0].ID); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	first, _ := f.artifactRepo.GetByIDs(ctx, nil, []uuid.UUID{artifacts[0].ID})

	if err := gs.Generate(ctx, artifacts[0].ID); err != nil {
		t.Fatalf("second generate should no-op, got %v", err)
	}
	second, _ := f.artifactRepo.GetByIDs(ctx, nil, []uuid.UUID{artifacts[0].ID})

	if first[0].GenerationStatus != second[0].GenerationStatus {
		t.Fatal("second generate changed status")
	}
	if *first[0].Content != *second[0].Content {
		t.Fatal("second generate changed content")
	}
}

func TestGenerateUnknownArtifact(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t)
	gs := newGenerationService(f, &staticGenerator{}, time.Minute)

	err := gs.Generate(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("generating a missing artifact should fail")
	}
}

// Terminal-status closure: after the worker drains the plan, nothing is left
// pending or generating.
func TestGenerateBatchTerminalClosure(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	artifacts := ensurePlan(t, f, userID)
	failKey := artifacts[1].ArtifactKey
	// concurrency 1: sqlite's in-memory shared cache dislikes parallel writers
	gen := &staticGenerator{failKeys: map[string]bool{failKey: true}}
	gs := NewGenerationService(f.db, newTestLogger(), f.artifactRepo, f.planRepo, f.userRepo, gen, time.Minute, 5*time.Minute, 1).(*generationService)
	ctx := context.Background()

	pending, err := f.artifactRepo.ListByStatus(ctx, nil, types.ArtifactStatusPending, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	gs.generateBatch(ctx, pending)

	after, _ := f.artifactRepo.GetByPlanID(ctx, nil, artifacts[0].PlanID)
	for _, a := range after {
		if !types.IsTerminal(a.GenerationStatus) {
			t.Fatalf("artifact %s left in %q after batch", a.ArtifactKey, a.GenerationStatus)
		}
	}
}
