package audit

import (
	"sort"
	"time"
)

// GenerateReport aggregates governance activity between start and end from
// the in-memory window.
func (l *Logger) GenerateReport(start, end time.Time) *ComplianceReport {
	entries := l.Query(Query{Start: &start, End: &end})

	report := &ComplianceReport{
		PeriodStart:             start,
		PeriodEnd:               end,
		GeneratedAt:             time.Now().UTC(),
		TotalEntries:            len(entries),
		PrincipleViolationRates: make(map[string]float64),
	}

	principleSeen := make(map[string]int)
	principleViolated := make(map[string]int)
	agentViolations := make(map[string]int)

	for _, e := range entries {
		switch e.EntryType {
		case EntryDecision:
			report.Decisions++
			if e.Decision == "block" || e.Decision == "escalate" {
				report.Blocked++
			}

			report.ViolationsBySeverity.Total += e.Violations.Total
			report.ViolationsBySeverity.Critical += e.Violations.Critical
			report.ViolationsBySeverity.High += e.Violations.High
			report.ViolationsBySeverity.Medium += e.Violations.Medium
			report.ViolationsBySeverity.Low += e.Violations.Low

			for _, p := range e.PrincipleIDs {
				principleSeen[p]++
				if e.Violations.Total > 0 {
					principleViolated[p]++
				}
			}
			if e.AgentDID != "" && e.Violations.Total > 0 {
				agentViolations[e.AgentDID] += e.Violations.Total
			}
		case EntryOverrideCreated:
			report.OverridesCreated++
		case EntryOverrideUsed:
			report.OverridesUsed++
		}
	}

	if report.Decisions > 0 {
		report.BlockRate = float64(report.Blocked) / float64(report.Decisions)
	}
	for p, seen := range principleSeen {
		report.PrincipleViolationRates[p] = float64(principleViolated[p]) / float64(seen)
	}

	ranked := make([]AgentViolationCount, 0, len(agentViolations))
	for agent, count := range agentViolations {
		ranked = append(ranked, AgentViolationCount{AgentDID: agent, Violations: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Violations != ranked[j].Violations {
			return ranked[i].Violations > ranked[j].Violations
		}
		return ranked[i].AgentDID < ranked[j].AgentDID
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	report.TopViolatingAgents = ranked

	return report
}
