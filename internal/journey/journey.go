// Package journey derives the single stage a user is allowed to be on from
// their completion record. Resolve is the only source of truth for gating:
// the HTTP gate and the /journey payload the client redirects on both call
// it, so the two cannot disagree.
package journey

import (
	"github.com/rowanvale/compass-backend/internal/types"
)

type Step string

const (
	StepInterview   Step = "interview"
	StepPaywall     Step = "paywall"
	StepModule1     Step = "module_1"
	StepModule2     Step = "module_2"
	StepModule3     Step = "module_3"
	StepGraduation  Step = "graduation"
	StepSeriousPlan Step = "serious_plan"
)

// Steps in journey order. Order position doubles as the access-control rank.
var Steps = []Step{
	StepInterview,
	StepPaywall,
	StepModule1,
	StepModule2,
	StepModule3,
	StepGraduation,
	StepSeriousPlan,
}

var stepOrder = func() map[Step]int {
	m := make(map[Step]int, len(Steps))
	for i, s := range Steps {
		m[s] = i
	}
	return m
}()

var stepPaths = map[Step]string{
	StepInterview:   "/interview",
	StepPaywall:     "/offer",
	StepModule1:     "/modules/1",
	StepModule2:     "/modules/2",
	StepModule3:     "/modules/3",
	StepGraduation:  "/graduation",
	StepSeriousPlan: "/serious-plan",
}

type Resolution struct {
	Step Step   `json:"step"`
	Path string `json:"current_path"`
}

// Resolve maps a completion record to the user's current step. First unmet
// flag wins, in the fixed journey order.
func Resolve(rec types.CompletionRecord) Resolution {
	step := StepSeriousPlan
	switch {
	case !rec.InterviewComplete:
		step = StepInterview
	case !rec.PaymentVerified:
		step = StepPaywall
	case !rec.Module1Complete:
		step = StepModule1
	case !rec.Module2Complete:
		step = StepModule2
	case !rec.Module3Complete:
		step = StepModule3
	case !rec.HasPlan:
		step = StepGraduation
	}
	return Resolution{Step: step, Path: PathFor(step)}
}

// PathFor returns the canonical page path for a step.
func PathFor(step Step) string {
	return stepPaths[step]
}

// Order returns the rank of a step in the journey, or -1 for an unknown step.
func Order(step Step) int {
	if i, ok := stepOrder[step]; ok {
		return i
	}
	return -1
}

// Allowed reports whether a request for the requested step is permitted given
// the user's current step: anything at or before the current step is fine,
// anything ahead of it must redirect to the current step's path.
func Allowed(requested, current Step) bool {
	ri := Order(requested)
	ci := Order(current)
	if ri < 0 || ci < 0 {
		return false
	}
	return ri <= ci
}

// StepForPath maps a canonical page path back to its step. Used by the gate
// middleware; ok is false for paths outside the journey.
func StepForPath(path string) (Step, bool) {
	for s, p := range stepPaths {
		if p == path {
			return s, true
		}
	}
	return "", false
}
