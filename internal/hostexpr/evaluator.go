package hostexpr

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// SelfBinding is the binding name of the receiver.
const SelfBinding = "self"

// Evaluator compiles and runs host expressions.
//
// Thread Safety: safe for concurrent use. Compiled programs and method sets
// are cached; a program is compiled at most once per distinct source.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program

	methods sync.Map // reflect.Type -> []method

	options []expr.Option
	logger  *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithExprOptions passes extra options, such as expr.Function, to every
// compilation.
func WithExprOptions(opts ...expr.Option) Option {
	return func(ev *Evaluator) {
		ev.options = append(ev.options, opts...)
	}
}

// WithLogger sets the logger for compilation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(ev *Evaluator) {
		ev.logger = logger
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	ev := &Evaluator{
		programs: make(map[string]*vm.Program),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Evaluate runs src against bindings. bindings is not modified.
func (ev *Evaluator) Evaluate(src string, bindings map[string]any) (any, error) {
	program, err := ev.compile(src)
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(bindings)+8)
	for k, v := range bindings {
		env[k] = v
	}
	var failure methodFailure
	if self, ok := bindings[SelfBinding]; ok && self != nil {
		ev.promote(env, self, &failure)
	}

	out, err := expr.Run(program, env)
	if failure.err != nil {
		return nil, failure.err
	}
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", src, err)
	}
	return out, nil
}

// Compile checks that src is a valid expression without running it.
func (ev *Evaluator) Compile(src string) error {
	_, err := ev.compile(src)
	return err
}

// Cached returns the number of compiled programs.
func (ev *Evaluator) Cached() int {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	return len(ev.programs)
}

func (ev *Evaluator) compile(src string) (*vm.Program, error) {
	ev.mu.RLock()
	program, ok := ev.programs[src]
	ev.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(src, ev.options...)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", src, err)
	}

	ev.mu.Lock()
	if cached, ok := ev.programs[src]; ok {
		program = cached
	} else {
		ev.programs[src] = program
		ev.logger.Debug("expression compiled", "source", src, "cached", len(ev.programs))
	}
	ev.mu.Unlock()
	return program, nil
}

// methodFailure records the first error returned by a promoted method
// during one evaluation.
type methodFailure struct {
	err error
}

func (f *methodFailure) record(err error) {
	if f.err == nil {
		f.err = err
	}
}

// method is one exported method of a receiver type.
type method struct {
	index    int
	name     string
	lower    string
	hasError bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// methodsOf returns the exported methods of t, cached per type.
func (ev *Evaluator) methodsOf(t reflect.Type) []method {
	if cached, ok := ev.methods.Load(t); ok {
		return cached.([]method)
	}
	var out []method
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() {
			continue
		}
		mt := m.Type
		hasError := mt.NumOut() > 0 && mt.Out(mt.NumOut()-1) == errorType
		out = append(out, method{index: i, name: m.Name, lower: lowerFirst(m.Name), hasError: hasError})
	}
	ev.methods.Store(t, out)
	return out
}

// Exposer is implemented by receivers that publish names to assertions
// beyond their methods, such as receivers backed by a map.
type Exposer interface {
	ContractBindings() map[string]any
}

// promote binds the exported methods of self in env, then the names self
// exposes. Existing bindings win.
func (ev *Evaluator) promote(env map[string]any, self any, failure *methodFailure) {
	rv := reflect.ValueOf(self)
	for _, m := range ev.methodsOf(rv.Type()) {
		fn := rv.Method(m.index)
		if m.hasError {
			fn = capturing(fn, failure)
		}
		bound := fn.Interface()
		for _, name := range []string{m.name, m.lower} {
			if _, taken := env[name]; !taken {
				env[name] = bound
			}
		}
	}
	if x, ok := self.(Exposer); ok {
		for name, v := range x.ContractBindings() {
			if _, taken := env[name]; !taken {
				env[name] = v
			}
		}
	}
}

// capturing wraps fn so a non-nil trailing error is recorded in failure
// before being returned.
func capturing(fn reflect.Value, failure *methodFailure) reflect.Value {
	return reflect.MakeFunc(fn.Type(), func(args []reflect.Value) []reflect.Value {
		var out []reflect.Value
		if fn.Type().IsVariadic() {
			out = fn.CallSlice(args)
		} else {
			out = fn.Call(args)
		}
		if last := out[len(out)-1]; !last.IsNil() {
			failure.record(last.Interface().(error))
		}
		return out
	})
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
