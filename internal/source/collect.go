package source

import (
	"go/ast"
	"go/token"
	"maps"
	"slices"
	"sort"
	"unicode"
	"unicode/utf8"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/roach88/covenant/internal/compiler"
	"github.com/roach88/covenant/internal/ir"
)

// reporter matches analysis.Pass.Reportf.
type reporter func(pos token.Pos, format string, args ...any)

// collector turns the directives of one package into type declarations.
// Problems go to report; collection always runs to the end.
type collector struct {
	report   reporter
	types    map[string]*typeInfo
	order    []*typeInfo
	attached map[*ast.Comment]bool
}

type typeInfo struct {
	name       string
	declared   bool
	marked     bool
	iface      bool
	abstract   bool
	skip       bool
	parents    []string
	embedded   []string
	invariants []string
	ops        []*method
	methods    map[string]*method
}

type method struct {
	goName       string
	pos          token.Pos
	fn           *ast.FuncDecl
	op           ir.OperationDecl
	marked       bool
	declaredPure bool
	effects      effects
	pure         bool
}

func newCollector(report reporter) *collector {
	return &collector{
		report:   report,
		types:    make(map[string]*typeInfo),
		attached: make(map[*ast.Comment]bool),
	}
}

func (c *collector) typ(name string) *typeInfo {
	t, ok := c.types[name]
	if !ok {
		t = &typeInfo{name: name, methods: make(map[string]*method)}
		c.types[name] = t
	}
	return t
}

// collect visits the top-level declarations of files.
func (c *collector) collect(insp *inspector.Inspector, files []*ast.File) {
	filter := []ast.Node{(*ast.GenDecl)(nil), (*ast.FuncDecl)(nil)}
	insp.Nodes(filter, func(n ast.Node, push bool) bool {
		if !push {
			return false
		}
		switch n := n.(type) {
		case *ast.GenDecl:
			if n.Tok != token.TYPE {
				return false
			}
			for _, spec := range n.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && !n.Lparen.IsValid() {
					doc = n.Doc
				}
				c.typeSpec(ts, doc)
			}
		case *ast.FuncDecl:
			c.funcDecl(n)
		}
		return false
	})
	c.strays(files)
}

// directives parses the directives of a doc comment and marks them
// attached.
func (c *collector) directives(doc *ast.CommentGroup) []Directive {
	if doc == nil {
		return nil
	}
	var out []Directive
	for _, cm := range doc.List {
		d, ok := ParseDirective(cm.Text)
		if !ok {
			continue
		}
		d.Pos = cm.Pos()
		c.attached[cm] = true
		if err := d.Validate(); err != nil {
			c.report(d.Pos, "%v", err)
			continue
		}
		out = append(out, d)
	}
	return out
}

func (c *collector) clause(d Directive, kind ir.ClauseKind, typ string) bool {
	if _, err := compiler.ParseClause(kind, typ, d.Arg); err != nil {
		c.report(d.Pos, "%s clause: %v", kind, err)
		return false
	}
	return true
}

func (c *collector) typeSpec(spec *ast.TypeSpec, doc *ast.CommentGroup) {
	t := c.typ(spec.Name.Name)
	if t.declared {
		return
	}
	t.declared = true
	c.order = append(c.order, t)

	for _, d := range c.directives(doc) {
		t.marked = true
		switch d.Kind {
		case DirectiveInvariant:
			if c.clause(d, ir.KindInvariant, t.name) {
				t.invariants = append(t.invariants, d.Arg)
			}
		case DirectiveParent:
			t.parents = append(t.parents, d.Parents()...)
		case DirectiveAbstract:
			t.abstract = true
		case DirectiveSkip:
			t.skip = true
		default:
			c.report(d.Pos, "covenant:%s belongs on a function or method, not on type %s", d.Kind, t.name)
		}
	}

	switch st := spec.Type.(type) {
	case *ast.StructType:
		for _, f := range st.Fields.List {
			if len(f.Names) == 0 {
				if name := typeName(f.Type); name != "" {
					t.embedded = append(t.embedded, name)
				}
			}
		}
	case *ast.InterfaceType:
		t.iface = true
		for _, f := range st.Methods.List {
			if len(f.Names) == 0 {
				if name := typeName(f.Type); name != "" {
					t.embedded = append(t.embedded, name)
				}
				continue
			}
			if _, ok := f.Type.(*ast.FuncType); !ok {
				continue
			}
			m := &method{goName: f.Names[0].Name, pos: f.Pos()}
			m.op.Name = operationName(m.goName)
			c.operation(t, m, c.directives(f.Doc))
		}
	}
}

func (c *collector) funcDecl(fn *ast.FuncDecl) {
	dirs := c.directives(fn.Doc)

	if fn.Recv == nil {
		if !slices.ContainsFunc(dirs, func(d Directive) bool { return d.Kind == DirectiveConstructor }) {
			for _, d := range dirs {
				c.report(d.Pos, "covenant:%s on function %s, which is neither a method nor a constructor", d.Kind, fn.Name.Name)
			}
			return
		}
		var name string
		if res := fn.Type.Results; res != nil && len(res.List) > 0 {
			name = typeName(res.List[0].Type)
		}
		if name == "" {
			c.report(fn.Name.Pos(), "constructor %s must return the constructed type first", fn.Name.Name)
			return
		}
		m := &method{goName: fn.Name.Name, pos: fn.Pos(), fn: fn}
		m.op = ir.OperationDecl{Name: operationName(fn.Name.Name), Constructor: true}
		c.operation(c.typ(name), m, dirs)
		return
	}

	name := typeName(fn.Recv.List[0].Type)
	if name == "" {
		return
	}
	t := c.typ(name)
	m := &method{goName: fn.Name.Name, pos: fn.Pos(), fn: fn, effects: bodyEffects(fn)}
	m.op.Name = operationName(fn.Name.Name)
	for _, d := range dirs {
		if d.Kind == DirectiveConstructor {
			c.report(d.Pos, "covenant:constructor belongs on a function, not on method %s.%s", name, fn.Name.Name)
		}
	}
	t.methods[m.goName] = m
	c.operation(t, m, dirs)
}

func (c *collector) operation(t *typeInfo, m *method, dirs []Directive) {
	for _, d := range dirs {
		m.marked = true
		switch d.Kind {
		case DirectiveRequire:
			if c.clause(d, ir.KindRequire, t.name) {
				m.op.Requires = append(m.op.Requires, d.Arg)
			}
		case DirectiveEnsure:
			if c.clause(d, ir.KindEnsure, t.name) {
				m.op.Ensures = append(m.op.Ensures, d.Arg)
			}
		case DirectivePure:
			if m.op.Constructor {
				c.report(d.Pos, "constructor %s cannot be pure", m.goName)
				continue
			}
			m.op.Pure = true
			m.declaredPure = true
		case DirectiveConstructor:
		default:
			c.report(d.Pos, "covenant:%s belongs on a type declaration, not on %s", d.Kind, m.goName)
		}
	}
	if m.marked {
		t.marked = true
	}
	t.ops = append(t.ops, m)
}

// strays reports directives that are not part of a declaration's doc
// comment.
func (c *collector) strays(files []*ast.File) {
	for _, f := range files {
		for _, g := range f.Comments {
			for _, cm := range g.List {
				if _, ok := ParseDirective(cm.Text); ok && !c.attached[cm] {
					c.report(cm.Pos(), "covenant directive is not attached to a type or function declaration")
				}
			}
		}
	}
}

// decls resolves purity and parents and returns the declarations of
// every type that carries at least one directive, in source order.
func (c *collector) decls() []ir.TypeDecl {
	var out []ir.TypeDecl
	for _, t := range c.order {
		if !t.marked {
			continue
		}
		inferPurity(t.methods)
		sort.SliceStable(t.ops, func(i, j int) bool { return t.ops[i].pos < t.ops[j].pos })

		decl := ir.TypeDecl{
			Name:       t.name,
			Parents:    c.parents(t),
			Invariants: t.invariants,
			Abstract:   t.abstract || t.iface,
			Skip:       t.skip,
		}
		seen := make(map[string]bool, len(t.ops))
		for _, m := range t.ops {
			if seen[m.op.Name] {
				c.report(m.pos, "%s declares operation %s twice", t.name, m.op.Name)
				continue
			}
			seen[m.op.Name] = true
			if m.declaredPure && m.effects.write != "" {
				c.report(m.effects.writePos, "%s.%s is declared pure but %s", t.name, m.goName, m.effects.write)
			}
			op := m.op
			if m.fn != nil && !op.Constructor && !m.declaredPure {
				op.InferredPure = m.pure
			}
			decl.Operations = append(decl.Operations, op)
		}
		out = append(out, decl)
	}

	for _, name := range slices.Sorted(maps.Keys(c.types)) {
		t := c.types[name]
		if !t.declared && t.marked {
			c.report(t.ops[0].pos, "type %s carries contracts but is not declared in this package", name)
		}
	}
	return out
}

// parents lists explicit parents first, then embedded types that carry
// contracts themselves.
func (c *collector) parents(t *typeInfo) []string {
	var out []string
	add := func(name string) {
		if name != t.name && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, p := range t.parents {
		add(p)
	}
	for _, e := range t.embedded {
		if et, ok := c.types[e]; ok && et.declared && et.marked {
			add(e)
		}
	}
	return out
}

// typeName returns the local type name of a receiver, result or embedded
// field type, or "" for types from other packages.
func typeName(x ast.Expr) string {
	switch x := x.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.StarExpr:
		return typeName(x.X)
	case *ast.ParenExpr:
		return typeName(x.X)
	case *ast.IndexExpr:
		return typeName(x.X)
	case *ast.IndexListExpr:
		return typeName(x.X)
	}
	return ""
}

// operationName lowers the first letter of a Go method name.
func operationName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}
