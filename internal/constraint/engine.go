package constraint

import (
	"sort"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// Engine runs the evaluation pipeline from spec §4.3: select applicable
// items, execute each item's constraints in declared order, aggregate.
type Engine struct{}

// New constructs an Engine. It is stateless — item selection and content
// are supplied per call by the caller (internal/operation), which knows
// the tenant's Accepted knowledge items.
func New() *Engine { return &Engine{} }

// Check evaluates every constraint on every item against ctx, skipping
// constraints whose own severity is below minSeverity (spec §4.3
// "Evaluation pipeline" step 1:
// "all Accepted items across layers visible to tenant, filtered by
// minSeverity" — callers are expected to have already restricted items
// to Accepted + tenant-visible ones; Check itself only applies the
// minSeverity filter, since status/visibility depend on the Knowledge
// Store, not this package).
func (e *Engine) Check(items []mkctypes.Item, ctx mkctypes.EvalContext, minSeverity mkctypes.Severity) mkctypes.EvalResult {
	var violations []mkctypes.Violation

	sorted := append([]mkctypes.Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, item := range sorted {
		for _, c := range item.Constraints {
			if !c.Severity.AtLeast(minSeverity) {
				continue
			}
			compiled, err := Compile(c, item.ID)
			if err != nil {
				violations = append(violations, mkctypes.Violation{
					ConstraintID:  c.ID,
					KnowledgeItem: item.ID,
					Severity:      mkctypes.SeverityBlock,
					Message:       err.Error(),
				})
				continue
			}
			violations = append(violations, compiled.evaluate(ctx)...)
		}
	}

	sortViolations(violations)

	summary := map[mkctypes.Severity]int{}
	passed := true
	for _, v := range violations {
		summary[v.Severity]++
		if v.Severity == mkctypes.SeverityBlock {
			passed = false
		}
	}

	return mkctypes.EvalResult{Passed: passed, Violations: violations, Summary: summary}
}

// sortViolations orders by (path, line) per spec §4.3 "Evaluation
// context": "violations for a single constraint are sorted by (path,
// line)" — applied here across the full aggregate for determinism.
func sortViolations(violations []mkctypes.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i].Location, violations[j].Location
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Line < b.Line
	})
}
