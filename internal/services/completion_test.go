package services

import (
	"context"
	"testing"

	"github.com/rowanvale/compass-backend/internal/journey"
	"github.com/rowanvale/compass-backend/internal/repos"
	"github.com/rowanvale/compass-backend/internal/types"

	"github.com/google/uuid"
)

func seedBareUser(t *testing.T, f *fixture) uuid.UUID {
	t.Helper()
	user := &types.User{ID: uuid.New(), Email: uuid.NewString()[:8] + "@example.com"}
	if _, err := f.userRepo.Create(context.Background(), nil, []*types.User{user}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func TestGetOrCreateIsStable(t *testing.T) {
	f := newFixture(t)
	userID := seedBareUser(t, f)
	ctx := context.Background()

	first, err := f.completionSvc.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	if first.InterviewComplete || first.PaymentVerified || first.HasPlan {
		t.Fatal("fresh completion record should be all false")
	}
	second, err := f.completionSvc.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("GetOrCreate created a second row: %s vs %s", first.ID, second.ID)
	}
}

func TestMarkCompleteIsMonotonic(t *testing.T) {
	f := newFixture(t)
	userID := seedBareUser(t, f)
	ctx := context.Background()

	flags := []string{
		repos.FlagInterviewComplete,
		repos.FlagPaymentVerified,
		repos.FlagModule1Complete,
		repos.FlagModule2Complete,
		repos.FlagModule3Complete,
		repos.FlagHasPlan,
	}
	for _, flag := range flags {
		if _, err := f.completionSvc.MarkComplete(ctx, userID, flag); err != nil {
			t.Fatalf("mark %s: %v", flag, err)
		}
		// marking again is a no-op, never a reset
		rec, err := f.completionSvc.MarkComplete(ctx, userID, flag)
		if err != nil {
			t.Fatalf("re-mark %s: %v", flag, err)
		}
		if !rec.InterviewComplete && flag == repos.FlagInterviewComplete {
			t.Fatalf("flag %s observed false after being set", flag)
		}
	}

	rec, err := f.completionSvc.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !(rec.InterviewComplete && rec.PaymentVerified && rec.Module1Complete &&
		rec.Module2Complete && rec.Module3Complete && rec.HasPlan) {
		t.Fatalf("all flags should be true, got %+v", rec)
	}
}

func TestMarkCompleteRejectsUnknownFlag(t *testing.T) {
	f := newFixture(t)
	userID := seedBareUser(t, f)

	if _, err := f.completionSvc.MarkComplete(context.Background(), userID, "deleted_at"); err == nil {
		t.Fatal("arbitrary column names must be rejected")
	}
}

func TestResolveJourneyTracksFlags(t *testing.T) {
	f := newFixture(t)
	userID := seedBareUser(t, f)
	ctx := context.Background()

	steps := []struct {
		flag string
		want journey.Step
	}{
		{"", journey.StepInterview},
		{repos.FlagInterviewComplete, journey.StepPaywall},
		{repos.FlagPaymentVerified, journey.StepModule1},
		{repos.FlagModule1Complete, journey.StepModule2},
		{repos.FlagModule2Complete, journey.StepModule3},
		{repos.FlagModule3Complete, journey.StepGraduation},
		{repos.FlagHasPlan, journey.StepSeriousPlan},
	}
	for _, s := range steps {
		if s.flag != "" {
			if _, err := f.completionSvc.MarkComplete(ctx, userID, s.flag); err != nil {
				t.Fatalf("mark %s: %v", s.flag, err)
			}
		}
		got, err := f.completionSvc.ResolveJourney(ctx, userID)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if got.Step != s.want {
			t.Fatalf("after %q: step=%q, want %q", s.flag, got.Step, s.want)
		}
	}
}
