package ir

// ClauseKind identifies which contract category a clause belongs to.
type ClauseKind string

const (
	// KindRequire marks a precondition clause.
	KindRequire ClauseKind = "require"

	// KindEnsure marks a postcondition clause.
	KindEnsure ClauseKind = "ensure"

	// KindInvariant marks a type invariant clause.
	KindInvariant ClauseKind = "invariant"
)

// Clause is one parsed assertion plus the type that declared it.
//
// Clauses are created once, when a type's declarations are first prepared,
// and are immutable afterwards. The same *Clause is shared by the composed
// contracts of the declaring type and all of its subtypes.
type Clause struct {
	Kind          ClauseKind `json:"kind"`
	DeclaringType string     `json:"declaring_type"`
	Source        string     `json:"source"`
	Assertion     *Sequence  `json:"-"`
}

// String renders the clause assertion in contract syntax.
func (c *Clause) String() string {
	if c.Assertion == nil {
		return c.Source
	}
	return c.Assertion.String()
}

// RequireGroup holds the preconditions one declaring type contributes.
// Clauses within a group are conjoined; groups are disjoined.
type RequireGroup struct {
	DeclaringType string
	Clauses       []*Clause
}

// OperationContract is the composed contract of one operation, as seen
// from one concrete type.
//
// Requires is ordered ancestors first (depth-first, most distant first) with
// the composing type's own group last. Ensures uses the same order. Only
// types that declare at least one clause contribute a group.
type OperationContract struct {
	Type        string
	Operation   string
	Constructor bool

	Requires []RequireGroup
	Ensures  []*Clause

	// Pure is the resolved purity of the operation. PureSource is "declared",
	// "inferred", or empty when the operation is impure.
	Pure       bool
	PureSource string

	oldSlots []*Old
	oldIndex map[*Old]int
}

// NewOperationContract builds a composed operation contract and numbers
// every {old} occurrence in its postcondition.
//
// Slots are assigned by one walk over Ensures in order, each clause in
// source order. Both the snapshot pass and the evaluation pass read the
// numbering from here.
func NewOperationContract(typ, op string, requires []RequireGroup, ensures []*Clause) *OperationContract {
	oc := &OperationContract{
		Type:      typ,
		Operation: op,
		Requires:  requires,
		Ensures:   ensures,
		oldIndex:  make(map[*Old]int),
	}
	for _, clause := range ensures {
		Walk(clause.Assertion, func(n Node) bool {
			old, ok := n.(*Old)
			if !ok {
				return true
			}
			if _, seen := oc.oldIndex[old]; !seen {
				oc.oldIndex[old] = len(oc.oldSlots)
				oc.oldSlots = append(oc.oldSlots, old)
			}
			// Old cannot nest, nothing below needs a slot.
			return false
		})
	}
	return oc
}

// Subject returns the qualified "Type.operation" name used in messages.
func (oc *OperationContract) Subject() string {
	return oc.Type + "." + oc.Operation
}

// OldSlots returns the {old} nodes in slot order.
func (oc *OperationContract) OldSlots() []*Old {
	return oc.oldSlots
}

// OldIndex returns the snapshot slot assigned to an {old} node.
func (oc *OperationContract) OldIndex(o *Old) (int, bool) {
	i, ok := oc.oldIndex[o]
	return i, ok
}

// RequireClauses flattens Requires in evaluation order.
func (oc *OperationContract) RequireClauses() []*Clause {
	var out []*Clause
	for _, g := range oc.Requires {
		out = append(out, g.Clauses...)
	}
	return out
}

// HasRequires reports whether any precondition applies.
func (oc *OperationContract) HasRequires() bool {
	return len(oc.Requires) > 0
}

// TypeContract is the composed invariant of one type: ancestors first,
// own clauses last, each ancestor included once.
type TypeContract struct {
	Type       string
	Invariants []*Clause
}
