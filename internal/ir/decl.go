package ir

// TypeDecl is the raw contract declaration of one type, as supplied by a
// declaration source (CUE file, YAML scenario, Go source scan).
//
// Parents lists direct ancestors in declaration order: embedded or extended
// types first, then implemented interfaces. The order drives composition.
type TypeDecl struct {
	Name       string          `json:"name" yaml:"name"`
	Parents    []string        `json:"parents,omitempty" yaml:"parents,omitempty"`
	Invariants []string        `json:"invariants,omitempty" yaml:"invariants,omitempty"`
	Operations []OperationDecl `json:"operations,omitempty" yaml:"operations,omitempty"`

	// Abstract types (interfaces) contribute contracts to their subtypes but
	// are never guarded themselves.
	Abstract bool `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Skip opts the type out of instrumentation entirely.
	Skip bool `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// OperationDecl is the raw contract declaration of one operation.
type OperationDecl struct {
	Name        string   `json:"name" yaml:"name"`
	Constructor bool     `json:"constructor,omitempty" yaml:"constructor,omitempty"`
	Requires    []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Ensures     []string `json:"ensures,omitempty" yaml:"ensures,omitempty"`

	// Pure is the declared read-only marker. It is inherited by overriding
	// operations in subtypes.
	Pure bool `json:"pure,omitempty" yaml:"pure,omitempty"`

	// InferredPure is the result of static purity inference over the
	// operation body. It applies only when no declaration in the hierarchy
	// marks the operation pure.
	InferredPure bool `json:"inferred_pure,omitempty" yaml:"inferred_pure,omitempty"`
}

// Operation returns the declaration of the named operation, if present.
func (d *TypeDecl) Operation(name string) (*OperationDecl, bool) {
	for i := range d.Operations {
		if d.Operations[i].Name == name {
			return &d.Operations[i], true
		}
	}
	return nil, false
}
