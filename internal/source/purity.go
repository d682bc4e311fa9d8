package source

import (
	"fmt"
	"go/ast"
	"go/token"
)

// effects summarizes what a function body may do to state outside itself.
type effects struct {
	// write describes the first state write found, "" when there is none.
	write    string
	writePos token.Pos

	// call names the first call that is not a builtin, a conversion or a
	// method on the receiver.
	call    string
	callPos token.Pos

	// op names the first allocation or type assertion. Neither writes
	// existing state, but both keep a method from being inferred pure.
	op    string
	opPos token.Pos

	// callees are the receiver's methods called by the body.
	callees []string
}

func (e effects) local() bool { return e.write == "" && e.call == "" && e.op == "" }

// builtins that neither write state, allocate, nor call user code.
var pureBuiltins = map[string]bool{
	"cap": true, "complex": true, "imag": true, "len": true,
	"max": true, "min": true, "panic": true, "real": true,
}

var allocators = map[string]bool{"append": true, "make": true, "new": true}

var conversions = map[string]bool{
	"bool": true, "byte": true, "rune": true, "string": true, "error": true, "any": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
}

// bodyEffects walks fn's body. Writes to anything but a local variable,
// channel sends, goroutines and defers count as writes. Composite
// literals, make/new/append, slice conversions and type assertions are
// recorded as ops.
func bodyEffects(fn *ast.FuncDecl) effects {
	var eff effects
	if fn.Body == nil {
		eff.write, eff.writePos = "has no body", fn.Pos()
		return eff
	}

	recv := ""
	if fn.Recv != nil && len(fn.Recv.List) > 0 && len(fn.Recv.List[0].Names) > 0 {
		recv = fn.Recv.List[0].Names[0].Name
	}

	locals := map[string]bool{"_": true}
	declareFields(locals, fn.Type.Params)
	declareFields(locals, fn.Type.Results)

	writeAt := func(n ast.Node, what string) {
		if eff.write == "" {
			eff.write, eff.writePos = what, n.Pos()
		}
	}
	opAt := func(n ast.Node, what string) {
		if eff.op == "" {
			eff.op, eff.opPos = what, n.Pos()
		}
	}
	assign := func(n ast.Node, lhs ast.Expr) {
		if id, ok := lhs.(*ast.Ident); ok && locals[id.Name] {
			return
		}
		writeAt(n, "assigns to "+exprString(lhs))
	}

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			declareFields(locals, n.Type.Params)
			declareFields(locals, n.Type.Results)
		case *ast.ValueSpec:
			for _, id := range n.Names {
				locals[id.Name] = true
			}
		case *ast.AssignStmt:
			if n.Tok == token.DEFINE {
				for _, lhs := range n.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						locals[id.Name] = true
					}
				}
				return true
			}
			for _, lhs := range n.Lhs {
				assign(n, lhs)
			}
		case *ast.IncDecStmt:
			assign(n, n.X)
		case *ast.RangeStmt:
			for _, x := range []ast.Expr{n.Key, n.Value} {
				if x == nil {
					continue
				}
				if n.Tok == token.DEFINE {
					if id, ok := x.(*ast.Ident); ok {
						locals[id.Name] = true
					}
				} else {
					assign(n, x)
				}
			}
		case *ast.SendStmt:
			writeAt(n, "sends on a channel")
		case *ast.GoStmt:
			writeAt(n, "starts a goroutine")
		case *ast.DeferStmt:
			writeAt(n, "defers a call")
		case *ast.CompositeLit:
			opAt(n, "allocates a composite literal")
		case *ast.TypeAssertExpr:
			opAt(n, "asserts a type")
		case *ast.TypeSwitchStmt:
			opAt(n, "switches on a type")
		case *ast.CallExpr:
			switch fun := ast.Unparen(n.Fun).(type) {
			case *ast.Ident:
				if allocators[fun.Name] {
					opAt(n, "calls "+fun.Name)
					return true
				}
				if pureBuiltins[fun.Name] || conversions[fun.Name] {
					return true
				}
			case *ast.SelectorExpr:
				if x, ok := fun.X.(*ast.Ident); ok && recv != "" && x.Name == recv {
					eff.callees = append(eff.callees, fun.Sel.Name)
					return true
				}
			case *ast.ArrayType:
				opAt(n, "converts to "+exprString(fun))
				return true
			case *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.InterfaceType, *ast.StarExpr:
				return true
			}
			if eff.call == "" {
				eff.call, eff.callPos = "calls "+exprString(n.Fun), n.Pos()
			}
		}
		return true
	})
	return eff
}

func declareFields(locals map[string]bool, fields *ast.FieldList) {
	if fields == nil {
		return
	}
	for _, f := range fields.List {
		for _, id := range f.Names {
			locals[id.Name] = true
		}
	}
}

// inferPurity resolves purity for the methods of one type. A method is
// pure when its own body is, and every receiver method it calls is pure
// or declared pure. Mutual recursion between otherwise pure methods stays
// pure.
func inferPurity(methods map[string]*method) {
	for _, m := range methods {
		m.pure = m.declaredPure || m.effects.local()
	}
	for changed := true; changed; {
		changed = false
		for _, m := range methods {
			if !m.pure || m.declaredPure {
				continue
			}
			for _, name := range m.effects.callees {
				callee, ok := methods[name]
				if !ok || !callee.pure {
					m.pure = false
					changed = true
					break
				}
			}
		}
	}
}

func exprString(x ast.Expr) string {
	switch x := x.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.SelectorExpr:
		return exprString(x.X) + "." + x.Sel.Name
	case *ast.IndexExpr:
		return exprString(x.X) + "[...]"
	case *ast.StarExpr:
		return "*" + exprString(x.X)
	case *ast.ParenExpr:
		return "(" + exprString(x.X) + ")"
	case *ast.CallExpr:
		return exprString(x.Fun) + "(...)"
	case *ast.ArrayType:
		if x.Len == nil {
			return "[]" + exprString(x.Elt)
		}
		return "[...]" + exprString(x.Elt)
	}
	return fmt.Sprintf("%T", x)
}
