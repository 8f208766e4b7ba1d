package constraint

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// evaluate runs one compiled constraint against ctx and returns its
// violations (spec §4.3 "pass condition" table). A constraint with zero
// violations passed; one with any violations failed.
func (c *Compiled) evaluate(ctx mkctypes.EvalContext) []mkctypes.Violation {
	switch c.Source.Operator {
	case mkctypes.MustUse:
		return c.evalMustUse(ctx)
	case mkctypes.MustNotUse:
		return c.evalMustNotUse(ctx)
	case mkctypes.MustMatch:
		return c.evalMustMatch(ctx)
	case mkctypes.MustNotMatch:
		return c.evalMustNotMatch(ctx)
	case mkctypes.MustExist:
		return c.evalMustExist(ctx)
	case mkctypes.MustNotExist:
		return c.evalMustNotExist(ctx)
	default:
		return nil
	}
}

func (c *Compiled) violation(path string, line int, message string) mkctypes.Violation {
	if message == "" {
		message = c.Source.Message
	}
	if message == "" {
		message = string(c.Source.Operator) + " " + string(c.Source.Target) + ": " + c.Source.Pattern
	}
	return mkctypes.Violation{
		ConstraintID:  c.Source.ID,
		KnowledgeItem: c.KnowledgeItem,
		Severity:      c.Source.Severity,
		Message:       message,
		Location:      mkctypes.Location{Path: path, Line: line},
	}
}

// matchesAny reports whether re matches at least one of names (the
// dependency names or the textually extracted import paths).
func matchesAny(names []string, re interface{ MatchString(string) bool }) bool {
	for _, n := range names {
		if re.MatchString(n) {
			return true
		}
	}
	return false
}

func (c *Compiled) evalMustUse(ctx mkctypes.EvalContext) []mkctypes.Violation {
	var names []string
	switch c.Source.Target {
	case mkctypes.TargetDependency:
		names = sortedDependencyNames(ctx.Dependencies)
	case mkctypes.TargetImport:
		names = importNames(ctx.Files)
	}
	if matchesAny(names, c.regex) {
		return nil
	}
	return []mkctypes.Violation{c.violation("", 0, "")}
}

func (c *Compiled) evalMustNotUse(ctx mkctypes.EvalContext) []mkctypes.Violation {
	var violations []mkctypes.Violation
	switch c.Source.Target {
	case mkctypes.TargetDependency:
		for _, name := range sortedDependencyNames(ctx.Dependencies) {
			if c.regex.MatchString(name) {
				violations = append(violations, c.violation("", 0, "forbidden dependency: "+name))
			}
		}
	case mkctypes.TargetImport:
		for _, name := range importNames(ctx.Files) {
			if c.regex.MatchString(name) {
				violations = append(violations, c.violation("", 0, "forbidden import: "+name))
			}
		}
	case mkctypes.TargetCode:
		for _, f := range sortedFiles(ctx.Files) {
			if !c.appliesToFile(f.Path) {
				continue
			}
			for _, loc := range c.regex.FindAllStringIndex(f.Content, -1) {
				line := lineAt(f.Content, loc[0])
				violations = append(violations, c.violation(f.Path, line, ""))
			}
		}
	}
	return violations
}

func (c *Compiled) evalMustMatch(ctx mkctypes.EvalContext) []mkctypes.Violation {
	var violations []mkctypes.Violation
	for _, f := range sortedFiles(ctx.Files) {
		if !c.appliesToFile(f.Path) {
			continue
		}
		if c.Source.Target == mkctypes.TargetFile {
			// file target: pattern is a path glob every in-scope file's
			// path itself must match, not a content regex.
			if ok, _ := filepath.Match(c.Source.Pattern, f.Path); !ok {
				violations = append(violations, c.violation(f.Path, 0, "path does not match required pattern"))
			}
			continue
		}
		if !c.regex.MatchString(f.Content) {
			violations = append(violations, c.violation(f.Path, 0, "does not match required pattern"))
		}
	}
	return violations
}

func (c *Compiled) evalMustNotMatch(ctx mkctypes.EvalContext) []mkctypes.Violation {
	var violations []mkctypes.Violation
	for _, f := range sortedFiles(ctx.Files) {
		if !c.appliesToFile(f.Path) {
			continue
		}
		for _, loc := range c.regex.FindAllStringIndex(f.Content, -1) {
			line := lineAt(f.Content, loc[0])
			violations = append(violations, c.violation(f.Path, line, "matches forbidden pattern"))
		}
	}
	return violations
}

func (c *Compiled) evalMustExist(ctx mkctypes.EvalContext) []mkctypes.Violation {
	for _, f := range ctx.Files {
		if ok, _ := filepath.Match(c.Source.Pattern, f.Path); ok {
			return nil
		}
	}
	return []mkctypes.Violation{c.violation("", 0, "no file matches "+c.Source.Pattern)}
}

func (c *Compiled) evalMustNotExist(ctx mkctypes.EvalContext) []mkctypes.Violation {
	var violations []mkctypes.Violation
	for _, f := range sortedFiles(ctx.Files) {
		if ok, _ := filepath.Match(c.Source.Pattern, f.Path); ok {
			violations = append(violations, c.violation(f.Path, 0, "file must not exist"))
		}
	}
	return violations
}

func sortedFiles(files []mkctypes.File) []mkctypes.File {
	out := append([]mkctypes.File(nil), files...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func sortedDependencyNames(deps []mkctypes.Dependency) []string {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	sort.Strings(names)
	return names
}

// importNames extracts import path strings from Go source files via a
// textual scan of `import (...)` blocks and single-line `import "..."`
// statements — sufficient for DSL matching without a full parser, matching
// the spec's regex/glob-based evaluation model rather than AST analysis.
func importNames(files []mkctypes.File) []string {
	var names []string
	for _, f := range files {
		if !strings.HasSuffix(f.Path, ".go") {
			continue
		}
		names = append(names, extractGoImports(f.Content)...)
	}
	return names
}

func extractGoImports(content string) []string {
	var out []string
	lines := strings.Split(content, "\n")
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock:
			if imp := quotedPath(trimmed); imp != "" {
				out = append(out, imp)
			}
		case strings.HasPrefix(trimmed, "import "):
			if imp := quotedPath(strings.TrimPrefix(trimmed, "import ")); imp != "" {
				out = append(out, imp)
			}
		}
	}
	return out
}

func quotedPath(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(s[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

func lineAt(content string, byteOffset int) int {
	if byteOffset > len(content) {
		byteOffset = len(content)
	}
	return 1 + strings.Count(content[:byteOffset], "\n")
}
