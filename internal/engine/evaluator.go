package engine

// Evaluator executes opaque host-expression text.
//
// The engine renders every assertion into one expression in which the
// directives are replaced by reserved identifiers, and passes their values
// in bindings:
//
//	self     the receiver
//	_argN    the N-th call argument
//	_result  the return value
//	_oldK    old-value snapshot slot K
//	_qN      the already computed value of a quantifier
//
// Quantifier variables are bound under their declared names. The engine
// never looks inside expression text beyond the directive delimiters.
type Evaluator interface {
	Evaluate(expr string, bindings map[string]any) (any, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(expr string, bindings map[string]any) (any, error)

// Evaluate calls f(expr, bindings).
func (f EvaluatorFunc) Evaluate(expr string, bindings map[string]any) (any, error) {
	return f(expr, bindings)
}

// Reserved binding names.
const (
	BindSelf   = "self"
	BindResult = "_result"
)
