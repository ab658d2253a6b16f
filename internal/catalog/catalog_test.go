package catalog

import (
	"sort"
	"testing"
)

func TestKeysUniqueAndSorted(t *testing.T) {
	keys := Keys()
	if len(keys) == 0 {
		t.Fatal("catalog must not be empty")
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Fatalf("duplicate catalog key %q", k)
		}
		seen[k] = true
	}
	if !sort.StringsAreSorted(keys) {
		t.Fatalf("catalog keys should be in stable sorted order, got %v", keys)
	}
}

func TestByKey(t *testing.T) {
	for _, k := range Kinds() {
		got, ok := ByKey(k.Key)
		if !ok || got.Key != k.Key {
			t.Fatalf("ByKey(%q) not found", k.Key)
		}
	}
	if _, ok := ByKey("made_up"); ok {
		t.Fatal("ByKey should reject unknown keys")
	}
}

func TestValidateContent(t *testing.T) {
	kind, _ := ByKey("risk_assessment")
	cases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"valid", `{"risks":[{"risk":"burnout","mitigation":"rest weeks"}]}`, false},
		{"missing_field", `{"other":1}`, true},
		{"null_field", `{"risks":null}`, true},
		{"not_json", `plain text`, true},
		{"not_object", `[1,2,3]`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateContent(kind, tc.content)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateContent(%q)=%v, wantErr=%v", tc.content, err, tc.wantErr)
			}
		})
	}
}
