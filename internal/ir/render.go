package ir

import (
	"strconv"
	"strings"
)

func (n *Chunk) String() string { return n.Text }

func (n *Arg) String() string { return "{arg " + strconv.Itoa(n.Index) + "}" }

func (n *Result) String() string { return "{result}" }

func (n *Old) String() string {
	var b strings.Builder
	b.WriteString("{old ")
	n.Inner.render(&b)
	b.WriteByte('}')
	return b.String()
}

func (n *Forall) String() string {
	return renderQuantifier("forall", n.Type, n.Var, n.Source, n.Body)
}

func (n *Exists) String() string {
	return renderQuantifier("exists", n.Type, n.Var, n.Source, n.Body)
}

func (s *Sequence) String() string {
	var b strings.Builder
	s.render(&b)
	return b.String()
}

func (s *Sequence) render(b *strings.Builder) {
	if s == nil {
		return
	}
	if s.Parenthesized {
		b.WriteByte('(')
	}
	for _, n := range s.Nodes {
		if seq, ok := n.(*Sequence); ok {
			seq.render(b)
			continue
		}
		b.WriteString(n.String())
	}
	if s.Parenthesized {
		b.WriteByte(')')
	}
}

func renderQuantifier(keyword, typ, v string, source, body *Sequence) string {
	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(keyword)
	b.WriteByte('(')
	b.WriteString(typ)
	b.WriteByte(' ')
	b.WriteString(v)
	b.WriteString(": ")
	source.render(&b)
	b.WriteString(") ")
	body.render(&b)
	b.WriteByte('}')
	return b.String()
}
