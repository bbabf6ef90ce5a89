package policy

// Classifier aggregates the violations of an evaluation result and derives
// the block signal consumed by the engine.
type Classifier struct{}

// NewClassifier creates a new classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify groups violations by rule, counts them per severity, and derives
// ShouldBlock. The representative MostSevere violation is the first one in
// rule-evaluation order carrying the top severity present.
func (c *Classifier) Classify(result *EvaluationResult) *Classification {
	cls := &Classification{
		ByRule: make(map[string][]Violation),
	}
	if result == nil {
		return cls
	}

	for i := range result.Violations {
		v := result.Violations[i]
		cls.ByRule[v.RuleID] = append(cls.ByRule[v.RuleID], v)

		switch v.Severity {
		case SeverityCritical:
			cls.Counts.Critical++
		case SeverityHigh:
			cls.Counts.High++
		case SeverityMedium:
			cls.Counts.Medium++
		case SeverityLow:
			cls.Counts.Low++
		}

		if cls.MostSevere == nil || v.Severity.MoreSevere(cls.MostSevere.Severity) {
			cls.MostSevere = &result.Violations[i]
		}
	}

	cls.ShouldBlock = cls.Counts.Critical > 0 || cls.Counts.High > 0
	return cls
}
