package registry

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/covenant/internal/compiler"
	"github.com/roach88/covenant/internal/ir"
)

// Registry is the declaration table plus the composed-contract cache.
//
// Thread Safety: all methods are safe for concurrent use. Declarations take
// a write lock and invalidate every cached composition, since a new type may
// be an ancestor of types already composed.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*typeEntry
	order []string

	// generation increments on every Declare; cached entries are only
	// stored if the generation did not move while they were composed.
	generation uint64
	operations map[string]*ir.OperationContract
	invariants map[string]*ir.TypeContract

	operationGroup singleflight.Group
	typeGroup      singleflight.Group

	logger *slog.Logger
}

// typeEntry is a declared type with its clauses already parsed.
type typeEntry struct {
	decl       ir.TypeDecl
	invariants []*ir.Clause
	operations map[string]*operationEntry
}

type operationEntry struct {
	decl     ir.OperationDecl
	requires []*ir.Clause
	ensures  []*ir.Clause
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for composition diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		types:      make(map[string]*typeEntry),
		operations: make(map[string]*ir.OperationContract),
		invariants: make(map[string]*ir.TypeContract),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Declare registers one type. Every clause is parsed and checked against
// its clause kind first; on any error nothing is registered.
//
// Parents may be declared later. They must exist by the time a contract
// that needs them is composed.
func (r *Registry) Declare(decl ir.TypeDecl) error {
	entry, err := prepare(decl)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[decl.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, decl.Name)
	}
	r.types[decl.Name] = entry
	r.order = append(r.order, decl.Name)

	r.generation++
	clear(r.operations)
	clear(r.invariants)

	r.logger.Debug("type declared",
		"type", decl.Name,
		"parents", decl.Parents,
		"operations", len(decl.Operations),
		"invariants", len(decl.Invariants))
	return nil
}

// DeclareAll declares decls in order and stops at the first error.
func (r *Registry) DeclareAll(decls []ir.TypeDecl) error {
	for _, d := range decls {
		if err := r.Declare(d); err != nil {
			return fmt.Errorf("declaring %s: %w", d.Name, err)
		}
	}
	return nil
}

// prepare parses every clause of decl.
func prepare(decl ir.TypeDecl) (*typeEntry, error) {
	if decl.Name == "" {
		return nil, fmt.Errorf("type name is required")
	}

	entry := &typeEntry{
		decl:       decl,
		operations: make(map[string]*operationEntry, len(decl.Operations)),
	}

	for _, src := range decl.Invariants {
		c, err := compiler.ParseClause(ir.KindInvariant, decl.Name, src)
		if err != nil {
			return nil, fmt.Errorf("%s invariant: %w", decl.Name, err)
		}
		entry.invariants = append(entry.invariants, c)
	}

	for _, op := range decl.Operations {
		if op.Name == "" {
			return nil, fmt.Errorf("%s: operation name is required", decl.Name)
		}
		if _, dup := entry.operations[op.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate operation %s", decl.Name, op.Name)
		}
		oe := &operationEntry{decl: op}
		for _, src := range op.Requires {
			c, err := compiler.ParseClause(ir.KindRequire, decl.Name, src)
			if err != nil {
				return nil, fmt.Errorf("%s.%s require: %w", decl.Name, op.Name, err)
			}
			oe.requires = append(oe.requires, c)
		}
		for _, src := range op.Ensures {
			c, err := compiler.ParseClause(ir.KindEnsure, decl.Name, src)
			if err != nil {
				return nil, fmt.Errorf("%s.%s ensure: %w", decl.Name, op.Name, err)
			}
			oe.ensures = append(oe.ensures, c)
		}
		entry.operations[op.Name] = oe
	}

	return entry, nil
}

// Types returns the declared type names in declaration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Decl returns the declaration of a type.
func (r *Registry) Decl(typ string) (ir.TypeDecl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.types[typ]
	if !ok {
		return ir.TypeDecl{}, false
	}
	return e.decl, true
}

// Guarded reports whether calls on typ are instrumented at all. Abstract
// and skipped types, and types never declared, are not.
func (r *Registry) Guarded(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.types[typ]
	return ok && !e.decl.Abstract && !e.decl.Skip
}

// Ancestors returns every ancestor of typ, deduplicated, in composition
// order: depth-first over parents in declared order, most distant first.
// typ itself is not included.
func (r *Registry) Ancestors(typ string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain, err := r.chainLocked(typ)
	if err != nil {
		return nil, err
	}
	return chain[:len(chain)-1], nil
}

// chainLocked returns the ancestors of typ followed by typ itself.
// Caller must hold r.mu.
func (r *Registry) chainLocked(typ string) ([]string, error) {
	var (
		chain    []string
		visited  = make(map[string]bool)
		visiting = make(map[string]bool)
		path     []string
	)

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			cycle := append([]string(nil), path...)
			for i, p := range path {
				if p == name {
					cycle = append([]string(nil), path[i:]...)
					break
				}
			}
			return &CycleError{Path: append(cycle, name)}
		}
		e, ok := r.types[name]
		if !ok {
			if len(path) == 0 {
				return fmt.Errorf("%w: %s", ErrUnknownType, name)
			}
			return fmt.Errorf("%w: %s (ancestor of %s)", ErrUnknownType, name, path[0])
		}

		visiting[name] = true
		path = append(path, name)
		for _, parent := range e.decl.Parents {
			if err := visit(parent); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		visiting[name] = false
		visited[name] = true
		chain = append(chain, name)
		return nil
	}

	if err := visit(typ); err != nil {
		return nil, err
	}
	return chain, nil
}
