// Package catalog enumerates the fixed set of artifact kinds a plan is built
// from. The catalog is the contract between plan creation (one artifact row
// per kind) and generation (kind-specific prompt and expected content shape).
package catalog

import (
	"encoding/json"
	"fmt"
)

type Kind struct {
	Key            string
	Title          string
	Prompt         string
	RequiredFields []string
}

// Kinds in stable key order. Plan creation inserts exactly one artifact row
// per entry; adding a kind here changes the catalog for new plans only.
var kinds = []Kind{
	{
		Key:            "action_plan",
		Title:          "Action Plan",
		Prompt:         "Write a concrete 90-day action plan for this person based on their interview and module work. Return JSON.",
		RequiredFields: []string{"summary", "milestones"},
	},
	{
		Key:            "decision_snapshot",
		Title:          "Decision Snapshot",
		Prompt:         "Summarize the core decision this person is facing, the options they weighed, and the direction they chose. Return JSON.",
		RequiredFields: []string{"decision", "options", "chosen_direction"},
	},
	{
		Key:            "review_cadence",
		Title:          "Review Cadence",
		Prompt:         "Propose a review schedule with checkpoints for revisiting the plan. Return JSON.",
		RequiredFields: []string{"cadence", "checkpoints"},
	},
	{
		Key:            "risk_assessment",
		Title:          "Risk Assessment",
		Prompt:         "List the main risks to this plan and a mitigation for each. Return JSON.",
		RequiredFields: []string{"risks"},
	},
	{
		Key:            "support_map",
		Title:          "Support Map",
		Prompt:         "Map the people and resources this person can lean on while executing the plan. Return JSON.",
		RequiredFields: []string{"people", "resources"},
	},
}

func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

func Keys() []string {
	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, k.Key)
	}
	return keys
}

func ByKey(key string) (Kind, bool) {
	for _, k := range kinds {
		if k.Key == key {
			return k, true
		}
	}
	return Kind{}, false
}

// ValidateContent checks a generated document against the kind's expected
// top-level fields. Generation stores content only after this passes, so a
// complete artifact always has the shape its kind promises.
func ValidateContent(kind Kind, content string) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return fmt.Errorf("artifact %s content is not a JSON object: %w", kind.Key, err)
	}
	for _, field := range kind.RequiredFields {
		raw, ok := doc[field]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			return fmt.Errorf("artifact %s content missing required field %q", kind.Key, field)
		}
	}
	return nil
}
