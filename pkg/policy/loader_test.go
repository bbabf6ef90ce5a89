package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func writePrinciplesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "principles.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loaderRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, id := range []string{"r1", "r2"} {
		if err := reg.RegisterRule(passingRule(id)); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestLoader_Load(t *testing.T) {
	reg := loaderRegistry(t)
	path := writePrinciplesFile(t, `
principles:
  - id: custom
    name: Custom
    rule_ids: [r1, r2]
`)

	if err := NewLoader(reg, path).Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	rules, ok := reg.RulesForPrinciple("custom")
	if !ok {
		t.Fatal("principle not registered after load")
	}
	if len(rules) != 2 {
		t.Errorf("len(rules) = %d, want 2", len(rules))
	}
}

func TestLoader_RejectsUnknownRule(t *testing.T) {
	reg := loaderRegistry(t)
	if err := reg.RegisterPrinciple(&Principle{ID: "keep", RuleIDs: []string{"r1"}}); err != nil {
		t.Fatal(err)
	}
	path := writePrinciplesFile(t, `
principles:
  - id: bad
    rule_ids: [nonexistent]
`)

	err := NewLoader(reg, path).Load()
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}

	// Last good set stays active.
	if _, ok := reg.GetPrinciple("keep"); !ok {
		t.Error("previous principle lost after failed load")
	}
}

func TestLoader_RejectsMalformedYAML(t *testing.T) {
	reg := loaderRegistry(t)
	path := writePrinciplesFile(t, "principles: [\n")

	if err := NewLoader(reg, path).Load(); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestLoader_RejectsDuplicatePrincipleIDs(t *testing.T) {
	reg := loaderRegistry(t)
	path := writePrinciplesFile(t, `
principles:
  - id: dup
    rule_ids: [r1]
  - id: dup
    rule_ids: [r2]
`)

	if err := NewLoader(reg, path).Load(); err == nil {
		t.Fatal("Load() error = nil, want duplicate-id error")
	}
}

func TestLoader_DisabledRulesToggled(t *testing.T) {
	reg := NewRegistry()
	toggleable := &togglableTestRule{testRule: *passingRule("r1")}
	if err := reg.RegisterRule(toggleable); err != nil {
		t.Fatal(err)
	}
	path := writePrinciplesFile(t, `
principles:
  - id: p
    rule_ids: [r1]
disabled_rules: [r1]
`)

	if err := NewLoader(reg, path).Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if toggleable.Enabled() {
		t.Error("rule still enabled after disabled_rules load")
	}

	// A reload without the toggle re-enables the rule.
	if err := os.WriteFile(path, []byte("principles:\n  - id: p\n    rule_ids: [r1]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewLoader(reg, path).Load(); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if !toggleable.Enabled() {
		t.Error("rule not re-enabled after toggle removed")
	}
}

type togglableTestRule struct {
	testRule
}

func (r *togglableTestRule) SetEnabled(enabled bool) { r.enabled = enabled }
func (r *togglableTestRule) Enabled() bool           { return r.enabled }
