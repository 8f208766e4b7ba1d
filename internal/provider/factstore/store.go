// Package factstore implements provider.FactStore over google/mangle,
// backing the Team layer's "fact" backend class (spec §4.1). Facts are
// represented as Mangle atoms the way codenerd's core package converts
// its own Fact type to ast.Atom before inserting into a
// factstore.FactStore (internal/core/kernel.go, Fact.ToAtom).
package factstore

import (
	"fmt"
	"sync"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/provider"
)

// Store wraps a google/mangle in-memory fact store with a predicate/arity
// aware query surface suited to team-layer memory entries, where each
// fact is one observation keyed by predicate name.
type Store struct {
	mu    sync.RWMutex
	inner factstore.FactStore
}

var _ provider.FactStore = (*Store)(nil)

func New() *Store {
	return &Store{inner: factstore.NewSimpleInMemoryStore()}
}

func toTerm(arg any) (ast.BaseTerm, error) {
	switch v := arg.(type) {
	case string:
		return ast.String(v), nil
	case int:
		return ast.Number(int64(v)), nil
	case int64:
		return ast.Number(v), nil
	case float64:
		return ast.Float64(v), nil
	case bool:
		if v {
			return ast.TrueConstant, nil
		}
		return ast.FalseConstant, nil
	default:
		return ast.String(fmt.Sprintf("%v", v)), nil
	}
}

func (s *Store) toAtom(predicate string, args []any) (ast.Atom, error) {
	terms := make([]ast.BaseTerm, 0, len(args))
	for _, a := range args {
		t, err := toTerm(a)
		if err != nil {
			return ast.Atom{}, err
		}
		terms = append(terms, t)
	}
	return ast.NewAtom(predicate, terms...), nil
}

func (s *Store) AddFact(predicate string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	atom, err := s.toAtom(predicate, args)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "factstore.AddFact", "", err)
	}
	s.inner.Add(atom)
	return nil
}

func (s *Store) RemoveFact(predicate string, args ...any) error {
	// google/mangle's factstore.FactStore has no Remove primitive; facts
	// are immutable observations. Team-layer deletion is modeled as a
	// tombstone fact rather than a store mutation.
	s.mu.Lock()
	defer s.mu.Unlock()
	atom, err := s.toAtom(predicate+"_deleted", args)
	if err != nil {
		return mkcerr.Wrap(mkcerr.ProviderError, "factstore.RemoveFact", "", err)
	}
	s.inner.Add(atom)
	return nil
}

// Query returns every stored fact matching predicate/arity, each as a
// positional arg map ("0", "1", ...) since Mangle atoms carry no field
// names.
func (s *Store) Query(predicate string, arity int) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	freeVars := make([]ast.BaseTerm, arity)
	for i := range freeVars {
		freeVars[i] = ast.Variable{Symbol: fmt.Sprintf("X%d", i)}
	}
	query := ast.NewAtom(predicate, freeVars...)

	var out []map[string]any
	err := s.inner.GetFacts(query, func(atom ast.Atom) error {
		row := make(map[string]any, len(atom.Args))
		for i, arg := range atom.Args {
			row[fmt.Sprintf("%d", i)] = arg.String()
		}
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.ProviderError, "factstore.Query", "", err)
	}
	return out, nil
}

func (s *Store) PredicateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inner.ListPredicates())
}
