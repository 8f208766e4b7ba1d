// Package constraint implements the Constraint Engine (spec §4.3): DSL
// compilation and evaluation of (operator, target, pattern, severity)
// rules attached to knowledge items, grounded on the teacher's
// extension-keyed validator dispatch (internal/core/validator_syntax.go's
// SyntaxValidator.parsers map) and validator registry
// (internal/core/validator_registry.go), generalized from "one validator
// per file extension" to "one compiled executor per (operator, target)
// pair".
package constraint

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// Compiled is a constraint ready to evaluate: its pattern has already
// been validated (regex compiled, or confirmed as a glob) and its
// (operator, target) pair checked legal.
type Compiled struct {
	Source        mkctypes.Constraint
	KnowledgeItem string
	regex         *regexp.Regexp // non-nil for every non-file target
	isGlob        bool           // true for file targets
}

// Compile validates (operator, target) legality and compiles the
// pattern, per spec §4.3 "compilation validates (operator, target)
// pairs and patterns". A syntax failure returns a ConstraintSyntaxError
// attributed to knowledgeItemID, never to caller input (spec §4.3
// "Evaluation pipeline" step 3).
func Compile(c mkctypes.Constraint, knowledgeItemID string) (*Compiled, error) {
	if !mkctypes.Legal(c.Operator, c.Target) {
		return nil, mkcerr.New(mkcerr.ConstraintSyntaxError, "constraint.Compile",
			fmt.Sprintf("item %s: illegal pair (%s, %s)", knowledgeItemID, c.Operator, c.Target))
	}

	compiled := &Compiled{Source: c, KnowledgeItem: knowledgeItemID}

	switch c.Target {
	case mkctypes.TargetFile:
		if _, err := filepath.Match(c.Pattern, "probe"); err != nil {
			return nil, mkcerr.New(mkcerr.ConstraintSyntaxError, "constraint.Compile",
				fmt.Sprintf("item %s: invalid glob %q: %v", knowledgeItemID, c.Pattern, err))
		}
		compiled.isGlob = true
	default:
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, mkcerr.New(mkcerr.ConstraintSyntaxError, "constraint.Compile",
				fmt.Sprintf("item %s: invalid pattern %q: %v", knowledgeItemID, c.Pattern, err))
		}
		compiled.regex = re
	}

	for _, glob := range c.AppliesTo {
		if _, err := filepath.Match(glob, "probe"); err != nil {
			return nil, mkcerr.New(mkcerr.ConstraintSyntaxError, "constraint.Compile",
				fmt.Sprintf("item %s: invalid appliesTo glob %q: %v", knowledgeItemID, glob, err))
		}
	}
	return compiled, nil
}

// appliesToFile reports whether path is in scope for this constraint
// (spec §4.3: "files whose path matches any appliesTo glob; default:
// all files in the evaluation context").
func (c *Compiled) appliesToFile(path string) bool {
	if len(c.Source.AppliesTo) == 0 {
		return true
	}
	for _, glob := range c.Source.AppliesTo {
		if ok, _ := filepath.Match(glob, path); ok {
			return true
		}
	}
	return false
}
