package ir

// Node is one element of a parsed assertion.
//
// The set of node types is closed: Chunk, Arg, Result, Old, Forall, Exists
// and Sequence. Use a type switch or a Visitor to dispatch on them.
type Node interface {
	// Accept dispatches to the matching Visitor method.
	Accept(v Visitor) error

	// Pos returns the character offset of the node in the clause source.
	Pos() int

	// String renders the node back to contract syntax.
	String() string

	node()
}

// Chunk is an opaque host-expression fragment, forwarded verbatim.
type Chunk struct {
	Text   string
	Offset int
}

// Arg references the N-th call argument. Index is 1-based.
type Arg struct {
	Index  int
	Offset int
}

// Result references the value returned by the guarded operation.
type Result struct {
	Offset int
}

// Old is the value of Inner as it was immediately before the guarded call.
type Old struct {
	Inner  *Sequence
	Offset int
}

// Forall holds when Body is true for every element of Source.
type Forall struct {
	Type   string // dotted element type name, documentary only
	Var    string
	Source *Sequence
	Body   *Sequence
	Offset int
}

// Exists holds when Body is true for at least one element of Source.
type Exists struct {
	Type   string
	Var    string
	Source *Sequence
	Body   *Sequence
	Offset int
}

// Sequence is a flat concatenation of nodes forming one expression.
//
// Parenthesized records that the sequence came from a "( ... )" group in the
// source; rendering and evaluation keep the parentheses so operator
// precedence around quantifiers is preserved.
type Sequence struct {
	Nodes         []Node
	Parenthesized bool
	Offset        int
}

func (*Chunk) node()    {}
func (*Arg) node()      {}
func (*Result) node()   {}
func (*Old) node()      {}
func (*Forall) node()   {}
func (*Exists) node()   {}
func (*Sequence) node() {}

func (n *Chunk) Pos() int    { return n.Offset }
func (n *Arg) Pos() int      { return n.Offset }
func (n *Result) Pos() int   { return n.Offset }
func (n *Old) Pos() int      { return n.Offset }
func (n *Forall) Pos() int   { return n.Offset }
func (n *Exists) Pos() int   { return n.Offset }
func (n *Sequence) Pos() int { return n.Offset }

// Add appends a node to the sequence.
func (s *Sequence) Add(n Node) {
	s.Nodes = append(s.Nodes, n)
}

// Empty reports whether the sequence has no nodes, or only blank chunks.
func (s *Sequence) Empty() bool {
	for _, n := range s.Nodes {
		c, ok := n.(*Chunk)
		if !ok {
			return false
		}
		for _, r := range c.Text {
			if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
				return false
			}
		}
	}
	return true
}
