package mkctypes

// Operator is a constraint's verb (spec §3, §4.3).
type Operator string

const (
	MustUse       Operator = "must_use"
	MustNotUse    Operator = "must_not_use"
	MustMatch     Operator = "must_match"
	MustNotMatch  Operator = "must_not_match"
	MustExist     Operator = "must_exist"
	MustNotExist  Operator = "must_not_exist"
)

// Target is what a constraint is evaluated against (spec §3, §4.3).
type Target string

const (
	TargetFile       Target = "file"
	TargetCode       Target = "code"
	TargetDependency Target = "dependency"
	TargetImport     Target = "import"
	TargetConfig     Target = "config"
)

// LegalPairs is the (operator, target) legality table from spec §4.3.
var LegalPairs = map[Operator]map[Target]bool{
	MustUse:       {TargetDependency: true, TargetImport: true},
	MustNotUse:    {TargetDependency: true, TargetImport: true, TargetCode: true},
	MustMatch:     {TargetCode: true, TargetConfig: true, TargetFile: true},
	MustNotMatch:  {TargetCode: true, TargetConfig: true},
	MustExist:     {TargetFile: true},
	MustNotExist:  {TargetFile: true},
}

// Legal reports whether (op, target) is one of the legal combinations.
func Legal(op Operator, target Target) bool {
	targets, ok := LegalPairs[op]
	return ok && targets[target]
}

// Constraint is the §3 "Constraint" — parsed from a knowledge item's
// frontmatter or inline directives (spec §4.3).
type Constraint struct {
	ID         string // stable id within the owning item, e.g. "c1"
	Operator   Operator
	Target     Target
	Pattern    string // regex or glob, depending on Target
	AppliesTo  []string // file-scope globs; empty = all files in context
	Severity   Severity
	Message    string
}

// Dependency is a single entry in the evaluation context's dependency
// list (spec §4.3 "Evaluation context").
type Dependency struct {
	Name    string
	Version string
	Type    string // e.g. "go", "npm", "import"
}

// File is a single entry in the evaluation context's file list.
type File struct {
	Path    string
	Content string
}

// EvalContext is the §4.3 "Evaluation context".
type EvalContext struct {
	Files        []File
	Dependencies []Dependency
	Identifiers  Identifiers
}

// Location pinpoints a violation (spec §4.3 "Violation record").
type Location struct {
	Path string
	Line int // 1-based; 0 means "not applicable"
}

// Violation is the §4.3 "Violation record".
type Violation struct {
	ConstraintID   string
	KnowledgeItem  string
	Severity       Severity
	Message        string
	Location       Location
}

// EvalResult is the output of checkConstraints (spec §6).
type EvalResult struct {
	Passed     bool
	Violations []Violation
	Summary    map[Severity]int
}
