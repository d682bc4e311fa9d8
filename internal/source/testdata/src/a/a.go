package a

type State struct{}

//covenant:invariant count() >= 0
type Collection interface {
	//covenant:pure
	Count() int

	//covenant:ensure count() == {old count()} + 1
	Push(x any)
}

//covenant:invariant len(self.items) >= 0
type Stack struct {
	Collection
	items []any
}

//covenant:constructor
//covenant:ensure count() == 0
func NewStack() *Stack { return &Stack{} }

//covenant:pure
func (s *Stack) Count() int { return len(s.items) }

//covenant:require {arg 1} != nil
func (s *Stack) Push(x any) { s.items = append(s.items, x) }

//covenant:pure
func (s *Stack) Reset() {
	s.items = nil // want `Stack.Reset is declared pure but assigns to s.items`
}

//covenant:require {old {arg 1}} > 0 // want `require clause: .*`
func (s *Stack) Bad(x int) {}

//covenant:frobnicate // want `unknown covenant directive "frobnicate"`
func (s *Stack) Odd() {}

//covenant:invariant true // want `covenant:invariant belongs on a type declaration, not on Misplaced`
func (s *Stack) Misplaced() {}

//covenant:skip extra // want `covenant:skip takes no argument`
type Skipped struct{}

//covenant:require true // want `covenant:require on function helper, which is neither a method nor a constructor`
func helper() {}

//covenant:constructor
func Make() { // want `constructor Make must return the constructed type first`
}

func body() {
	//covenant:require true // want `covenant directive is not attached to a type or function declaration`
}
