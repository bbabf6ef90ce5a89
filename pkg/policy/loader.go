package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PrinciplesFile is the YAML document that defines the active principle set
// and per-rule toggles. Rules themselves are compiled in; the file only
// groups and enables them.
//
// Example:
//
//	principles:
//	  - id: integrity
//	    name: Integrity
//	    rule_ids: [signature-verification, chain-integrity]
//	disabled_rules:
//	  - volatility-ceiling
type PrinciplesFile struct {
	Principles    []*Principle `yaml:"principles"`
	DisabledRules []string     `yaml:"disabled_rules"`
}

// Toggleable is implemented by rules whose enabled flag can be flipped at
// runtime by the loader.
type Toggleable interface {
	SetEnabled(enabled bool)
}

// Loader loads a principles file into a registry. Reloads are atomic: an
// invalid file is rejected wholesale and the last good principle set stays
// active.
type Loader struct {
	registry *Registry
	path     string
}

// NewLoader creates a loader for the given principles file path.
func NewLoader(registry *Registry, path string) *Loader {
	return &Loader{registry: registry, path: path}
}

// Path returns the principles file path.
func (l *Loader) Path() string { return l.path }

// Load parses the principles file and atomically replaces the registry's
// principle set. Rule toggles are applied only after the swap succeeds.
func (l *Loader) Load() error {
	doc, err := l.Parse()
	if err != nil {
		return err
	}

	if err := l.registry.ReplacePrinciples(doc.Principles); err != nil {
		return &LoadError{Path: l.path, Cause: err}
	}

	l.applyToggles(doc.DisabledRules)
	return nil
}

// Parse reads and validates the principles file without mutating the
// registry. Used by `arbiter validate`.
func (l *Loader) Parse() (*PrinciplesFile, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, &LoadError{Path: l.path, Cause: err}
	}

	var doc PrinciplesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: l.path, Cause: err}
	}

	seen := make(map[string]bool, len(doc.Principles))
	for _, p := range doc.Principles {
		if p == nil || p.ID == "" {
			return nil, &LoadError{Path: l.path, Cause: fmt.Errorf("principle with empty id")}
		}
		if seen[p.ID] {
			return nil, &LoadError{Path: l.path, Cause: fmt.Errorf("duplicate principle id %q", p.ID)}
		}
		seen[p.ID] = true
		if len(p.RuleIDs) == 0 {
			return nil, &LoadError{Path: l.path, Cause: fmt.Errorf("principle %q references no rules", p.ID)}
		}
	}

	return &doc, nil
}

// applyToggles re-enables every toggleable rule, then disables the listed
// ones, so repeated reloads converge on the file's state.
func (l *Loader) applyToggles(disabled []string) {
	disabledSet := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		disabledSet[id] = true
	}

	for _, id := range l.registry.RuleIDs() {
		rule, ok := l.registry.GetRule(id)
		if !ok {
			continue
		}
		if t, ok := rule.(Toggleable); ok {
			t.SetEnabled(!disabledSet[id])
		}
	}
}
