package policy

import (
	"sort"
	"sync"
)

// Registry is a thread-safe in-memory store of rules and principles.
//
// Registration enforces referential integrity at write time: a principle may
// only reference rule ids that are already registered. Unregistering a rule
// deliberately does not cascade to principles that reference it; resolution
// at evaluation time simply skips rule ids that no longer resolve.
type Registry struct {
	mu         sync.RWMutex
	rules      map[string]Rule
	principles map[string]*Principle

	// ruleOrder preserves registration order so principle resolution is
	// deterministic for equal inputs.
	ruleOrder []string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:      make(map[string]Rule),
		principles: make(map[string]*Principle),
	}
}

// RegisterRule adds a rule to the registry.
// Registering a rule whose id already exists is rejected.
func (r *Registry) RegisterRule(rule Rule) error {
	if rule == nil {
		return ErrNilRule
	}
	if rule.ID() == "" {
		return &RegistryError{Kind: "rule", Operation: "register", Message: "rule id cannot be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID()]; exists {
		return &RegistryError{Kind: "rule", ID: rule.ID(), Operation: "register", Message: "rule already registered"}
	}

	r.rules[rule.ID()] = rule
	r.ruleOrder = append(r.ruleOrder, rule.ID())
	return nil
}

// UnregisterRule removes a rule by id. Principles referencing the rule keep
// their reference; resolution skips the missing rule.
func (r *Registry) UnregisterRule(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return &RegistryError{Kind: "rule", ID: id, Operation: "unregister", Message: "rule not found"}
	}

	delete(r.rules, id)
	for i, rid := range r.ruleOrder {
		if rid == id {
			r.ruleOrder = append(r.ruleOrder[:i], r.ruleOrder[i+1:]...)
			break
		}
	}
	return nil
}

// GetRule retrieves a rule by id.
func (r *Registry) GetRule(id string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	return rule, ok
}

// RegisterPrinciple adds a principle to the registry.
// Every referenced rule id must already be registered.
func (r *Registry) RegisterPrinciple(p *Principle) error {
	if p == nil {
		return &RegistryError{Kind: "principle", Operation: "register", Message: "principle cannot be nil"}
	}
	if p.ID == "" {
		return &RegistryError{Kind: "principle", Operation: "register", Message: "principle id cannot be empty"}
	}
	if len(p.RuleIDs) == 0 {
		return &RegistryError{Kind: "principle", ID: p.ID, Operation: "register", Message: "principle must reference at least one rule"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ruleID := range p.RuleIDs {
		if _, ok := r.rules[ruleID]; !ok {
			return &UnknownRuleError{PrincipleID: p.ID, RuleID: ruleID}
		}
	}

	// Store a copy so callers cannot mutate registered state.
	cp := *p
	cp.RuleIDs = append([]string(nil), p.RuleIDs...)
	r.principles[p.ID] = &cp
	return nil
}

// UnregisterPrinciple removes a principle by id.
func (r *Registry) UnregisterPrinciple(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.principles[id]; !ok {
		return &RegistryError{Kind: "principle", ID: id, Operation: "unregister", Message: "principle not found"}
	}

	delete(r.principles, id)
	return nil
}

// GetPrinciple retrieves a principle by id.
func (r *Registry) GetPrinciple(id string) (*Principle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principles[id]
	if !ok {
		return nil, false
	}
	cp := *p
	cp.RuleIDs = append([]string(nil), p.RuleIDs...)
	return &cp, true
}

// RulesForPrinciple returns the ordered, deduplicated rule list referenced by
// a principle. Rule ids that no longer resolve are skipped.
func (r *Registry) RulesForPrinciple(id string) ([]Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principles[id]
	if !ok {
		return nil, false
	}
	return r.resolveLocked(p.RuleIDs), true
}

// RulesForPrinciples resolves a set of principles to one ordered,
// deduplicated rule list. Unknown principle ids are skipped; the returned
// list contains each rule at most once, in first-reference order.
func (r *Registry) RulesForPrinciples(principleIDs []string) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ruleIDs []string
	for _, pid := range principleIDs {
		if p, ok := r.principles[pid]; ok {
			ruleIDs = append(ruleIDs, p.RuleIDs...)
		}
	}
	return r.resolveLocked(ruleIDs)
}

// resolveLocked maps rule ids to rules, deduplicating and preserving order.
// Caller must hold at least a read lock.
func (r *Registry) resolveLocked(ruleIDs []string) []Rule {
	seen := make(map[string]bool, len(ruleIDs))
	rules := make([]Rule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if rule, ok := r.rules[id]; ok {
			rules = append(rules, rule)
		}
	}
	return rules
}

// PrincipleIDs returns a sorted list of all registered principle ids.
func (r *Registry) PrincipleIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.principles))
	for id := range r.principles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RuleIDs returns all registered rule ids in registration order.
func (r *Registry) RuleIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.ruleOrder...)
}

// Stats returns counts of rules and principles and how many rules are enabled.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		Rules:      len(r.rules),
		Principles: len(r.principles),
	}
	for _, rule := range r.rules {
		if rule.Enabled() {
			stats.EnabledRules++
		}
	}
	return stats
}

// ReplacePrinciples atomically replaces the entire principle set. Used by the
// principles file loader for hot reload; the rule set is untouched. Every
// referenced rule id must resolve or the swap is rejected wholesale.
func (r *Registry) ReplacePrinciples(principles []*Principle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*Principle, len(principles))
	for _, p := range principles {
		if p == nil || p.ID == "" {
			return &RegistryError{Kind: "principle", Operation: "replace", Message: "principle id cannot be empty"}
		}
		for _, ruleID := range p.RuleIDs {
			if _, ok := r.rules[ruleID]; !ok {
				return &UnknownRuleError{PrincipleID: p.ID, RuleID: ruleID}
			}
		}
		cp := *p
		cp.RuleIDs = append([]string(nil), p.RuleIDs...)
		next[p.ID] = &cp
	}

	r.principles = next
	return nil
}
