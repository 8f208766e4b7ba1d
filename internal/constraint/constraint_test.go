package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

func TestCompileRejectsIllegalPair(t *testing.T) {
	_, err := Compile(mkctypes.Constraint{ID: "c1", Operator: mkctypes.MustExist, Target: mkctypes.TargetCode, Pattern: "x"}, "item-1")
	require.Error(t, err)
	assert.True(t, mkctypes.Legal(mkctypes.MustExist, mkctypes.TargetFile))
	assert.False(t, mkctypes.Legal(mkctypes.MustExist, mkctypes.TargetCode))
}

func TestCompileRejectsInvalidRegex(t *testing.T) {
	_, err := Compile(mkctypes.Constraint{ID: "c1", Operator: mkctypes.MustMatch, Target: mkctypes.TargetCode, Pattern: "("}, "item-1")
	require.Error(t, err)
}

func TestMustUseDependencyPassesWhenPresent(t *testing.T) {
	c, err := Compile(mkctypes.Constraint{ID: "c1", Operator: mkctypes.MustUse, Target: mkctypes.TargetDependency, Pattern: "^go\\.uber\\.org/zap$", Severity: mkctypes.SeverityBlock}, "item-1")
	require.NoError(t, err)

	ctx := mkctypes.EvalContext{Dependencies: []mkctypes.Dependency{{Name: "go.uber.org/zap"}}}
	assert.Empty(t, c.evaluate(ctx))
}

func TestMustUseDependencyFailsWhenAbsent(t *testing.T) {
	c, err := Compile(mkctypes.Constraint{ID: "c1", Operator: mkctypes.MustUse, Target: mkctypes.TargetDependency, Pattern: "^go\\.uber\\.org/zap$", Severity: mkctypes.SeverityBlock}, "item-1")
	require.NoError(t, err)

	ctx := mkctypes.EvalContext{Dependencies: []mkctypes.Dependency{{Name: "other"}}}
	assert.Len(t, c.evaluate(ctx), 1)
}

func TestMustNotUseCodeReportsLineNumber(t *testing.T) {
	c, err := Compile(mkctypes.Constraint{ID: "c1", Operator: mkctypes.MustNotUse, Target: mkctypes.TargetCode, Pattern: "panic\\(", Severity: mkctypes.SeverityWarn}, "item-1")
	require.NoError(t, err)

	ctx := mkctypes.EvalContext{Files: []mkctypes.File{{Path: "a.go", Content: "line one\nline two\npanic(\"x\")"}}}
	violations := c.evaluate(ctx)
	require.Len(t, violations, 1)
	assert.Equal(t, 3, violations[0].Location.Line)
}

func TestMustNotMatchReportsEveryOccurrenceNotJustLeftmost(t *testing.T) {
	c, err := Compile(mkctypes.Constraint{ID: "c1", Operator: mkctypes.MustNotMatch, Target: mkctypes.TargetCode, Pattern: `console\.log\(`, Severity: mkctypes.SeverityWarn}, "item-1")
	require.NoError(t, err)

	lines := make([]string, 42)
	for i := range lines {
		lines[i] = "// filler"
	}
	lines[9] = `console.log("first")`
	lines[41] = `console.log("second")`
	content := ""
	for i, l := range lines {
		if i > 0 {
			content += "\n"
		}
		content += l
	}

	ctx := mkctypes.EvalContext{Files: []mkctypes.File{{Path: "a.go", Content: content}}}
	violations := c.evaluate(ctx)
	require.Len(t, violations, 2)
	assert.Equal(t, 10, violations[0].Location.Line)
	assert.Equal(t, 42, violations[1].Location.Line)
}

func TestMustNotUseCodeReportsEveryOccurrenceNotJustLeftmost(t *testing.T) {
	c, err := Compile(mkctypes.Constraint{ID: "c1", Operator: mkctypes.MustNotUse, Target: mkctypes.TargetCode, Pattern: "panic\\(", Severity: mkctypes.SeverityWarn}, "item-1")
	require.NoError(t, err)

	ctx := mkctypes.EvalContext{Files: []mkctypes.File{{Path: "a.go", Content: "panic(\"a\")\nline two\npanic(\"b\")"}}}
	violations := c.evaluate(ctx)
	require.Len(t, violations, 2)
	assert.Equal(t, 1, violations[0].Location.Line)
	assert.Equal(t, 3, violations[1].Location.Line)
}

func TestMustExistFileFindsGlobMatch(t *testing.T) {
	c, err := Compile(mkctypes.Constraint{ID: "c1", Operator: mkctypes.MustExist, Target: mkctypes.TargetFile, Pattern: "*.md", Severity: mkctypes.SeverityInfo}, "item-1")
	require.NoError(t, err)

	ctx := mkctypes.EvalContext{Files: []mkctypes.File{{Path: "README.md"}}}
	assert.Empty(t, c.evaluate(ctx))

	ctx2 := mkctypes.EvalContext{Files: []mkctypes.File{{Path: "main.go"}}}
	assert.Len(t, c.evaluate(ctx2), 1)
}

func TestEngineCheckAggregatesAcrossItemsAndSortsByPathLine(t *testing.T) {
	items := []mkctypes.Item{
		{
			ID: "item-b",
			Constraints: []mkctypes.Constraint{
				{ID: "c1", Operator: mkctypes.MustNotMatch, Target: mkctypes.TargetCode, Pattern: "TODO", Severity: mkctypes.SeverityWarn},
			},
		},
		{
			ID: "item-a",
			Constraints: []mkctypes.Constraint{
				{ID: "c2", Operator: mkctypes.MustNotMatch, Target: mkctypes.TargetCode, Pattern: "FIXME", Severity: mkctypes.SeverityBlock},
			},
		},
	}
	ctx := mkctypes.EvalContext{Files: []mkctypes.File{
		{Path: "z.go", Content: "// TODO fix"},
		{Path: "a.go", Content: "// FIXME now"},
	}}

	e := New()
	result := e.Check(items, ctx, mkctypes.SeverityInfo)
	require.Len(t, result.Violations, 2)
	assert.Equal(t, "a.go", result.Violations[0].Location.Path)
	assert.False(t, result.Passed) // one Block violation
	assert.Equal(t, 1, result.Summary[mkctypes.SeverityBlock])
}

func TestEngineCheckPassesWithOnlyWarnViolations(t *testing.T) {
	items := []mkctypes.Item{
		{ID: "item-a", Constraints: []mkctypes.Constraint{
			{ID: "c1", Operator: mkctypes.MustNotMatch, Target: mkctypes.TargetCode, Pattern: "TODO", Severity: mkctypes.SeverityWarn},
		}},
	}
	ctx := mkctypes.EvalContext{Files: []mkctypes.File{{Path: "a.go", Content: "// TODO"}}}

	e := New()
	result := e.Check(items, ctx, mkctypes.SeverityInfo)
	assert.True(t, result.Passed)
	assert.Len(t, result.Violations, 1)
}

func TestEngineCheckMinSeverityFiltersLowerConstraints(t *testing.T) {
	items := []mkctypes.Item{
		{ID: "item-a", Constraints: []mkctypes.Constraint{
			{ID: "c1", Operator: mkctypes.MustNotMatch, Target: mkctypes.TargetCode, Pattern: "TODO", Severity: mkctypes.SeverityInfo},
		}},
	}
	ctx := mkctypes.EvalContext{Files: []mkctypes.File{{Path: "a.go", Content: "// TODO"}}}

	e := New()
	result := e.Check(items, ctx, mkctypes.SeverityWarn)
	assert.Empty(t, result.Violations)
}

func TestEngineCheckMalformedConstraintYieldsBlockSyntaxViolation(t *testing.T) {
	items := []mkctypes.Item{
		{ID: "item-a", Constraints: []mkctypes.Constraint{
			{ID: "c1", Operator: mkctypes.MustMatch, Target: mkctypes.TargetCode, Pattern: "(", Severity: mkctypes.SeverityInfo},
		}},
	}
	e := New()
	result := e.Check(items, mkctypes.EvalContext{}, mkctypes.SeverityInfo)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, mkctypes.SeverityBlock, result.Violations[0].Severity)
	assert.False(t, result.Passed)
}
