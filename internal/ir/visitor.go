package ir

// Visitor is the double-dispatch protocol over assertion nodes.
//
// Each method receives the concrete node. Visitors decide themselves
// whether to descend into children; Walk is available for plain traversals.
type Visitor interface {
	VisitChunk(n *Chunk) error
	VisitArg(n *Arg) error
	VisitResult(n *Result) error
	VisitOld(n *Old) error
	VisitForall(n *Forall) error
	VisitExists(n *Exists) error
	VisitSequence(n *Sequence) error
}

func (n *Chunk) Accept(v Visitor) error    { return v.VisitChunk(n) }
func (n *Arg) Accept(v Visitor) error      { return v.VisitArg(n) }
func (n *Result) Accept(v Visitor) error   { return v.VisitResult(n) }
func (n *Old) Accept(v Visitor) error      { return v.VisitOld(n) }
func (n *Forall) Accept(v Visitor) error   { return v.VisitForall(n) }
func (n *Exists) Accept(v Visitor) error   { return v.VisitExists(n) }
func (n *Sequence) Accept(v Visitor) error { return v.VisitSequence(n) }

// Walk traverses the tree rooted at n in depth-first, source order.
//
// fn is called for each node before its children; returning false skips the
// children of that node. For quantifiers the source is visited before the
// body, which is the order directives appear in the clause text.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Sequence:
		for _, child := range n.Nodes {
			Walk(child, fn)
		}
	case *Old:
		Walk(n.Inner, fn)
	case *Forall:
		Walk(n.Source, fn)
		Walk(n.Body, fn)
	case *Exists:
		Walk(n.Source, fn)
		Walk(n.Body, fn)
	}
}
