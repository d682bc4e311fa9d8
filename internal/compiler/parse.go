package compiler

import (
	"strconv"
	"unicode"

	"github.com/roach88/covenant/internal/ir"
)

// Directive keywords recognised after an opening brace.
const (
	keywordResult = "result"
	keywordArg    = "arg"
	keywordOld    = "old"
	keywordForall = "forall"
	keywordExists = "exists"
)

// Parse turns a contract assertion into its Sequence AST.
//
// The text is scanned rune by rune. Runs of characters other than the four
// delimiters { } ( ) become Chunk nodes and are kept verbatim. A brace opens
// a directive, a parenthesis opens a nested parenthesized Sequence. Offsets
// in nodes and errors are rune offsets into src.
//
// Parse performs no type checking and no evaluation. On failure it returns
// a *SyntaxError and no partial tree.
func Parse(src string) (*ir.Sequence, error) {
	p := &parser{src: []rune(src), text: src}
	seq, err := p.parseSequence(0, false)
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected '%c'", p.peek())
	}
	return seq, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for assertions known to be valid.
func MustParse(src string) *ir.Sequence {
	seq, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return seq
}

type parser struct {
	src  []rune
	text string
	pos  int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() rune {
	return p.src[p.pos]
}

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return newSyntaxError(p.text, p.pos, format, args...)
}

// atEnd reports whether the current sequence stops here: end of input or a
// closing delimiter that belongs to an enclosing construct.
func (p *parser) atEnd() bool {
	if p.eof() {
		return true
	}
	switch p.peek() {
	case '}', ')':
		return true
	}
	return false
}

func (p *parser) atChunkBoundary() bool {
	if p.eof() {
		return true
	}
	switch p.peek() {
	case '{', '}', '(', ')':
		return true
	}
	return false
}

// parseSequence reads nodes until the end of the enclosing construct.
// The caller consumes the closing delimiter.
func (p *parser) parseSequence(offset int, parenthesized bool) (*ir.Sequence, error) {
	seq := &ir.Sequence{Parenthesized: parenthesized, Offset: offset}
	for !p.atEnd() {
		start := p.pos
		for !p.atChunkBoundary() {
			p.pos++
		}
		if p.pos > start {
			seq.Add(&ir.Chunk{Text: string(p.src[start:p.pos]), Offset: start})
		}
		if p.eof() {
			break
		}
		switch p.peek() {
		case '{':
			n, err := p.parseDirective()
			if err != nil {
				return nil, err
			}
			seq.Add(n)
		case '(':
			n, err := p.parseParenthesized()
			if err != nil {
				return nil, err
			}
			seq.Add(n)
		}
	}
	return seq, nil
}

func (p *parser) parseParenthesized() (*ir.Sequence, error) {
	offset := p.pos
	p.pos++ // (
	seq, err := p.parseSequence(offset, true)
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return seq, nil
}

func (p *parser) parseDirective() (ir.Node, error) {
	offset := p.pos
	p.pos++ // {
	p.skipBlanks()

	keyword := p.parseWord()
	if keyword == "" {
		return nil, p.errorf("expected directive")
	}

	var (
		n   ir.Node
		err error
	)
	switch keyword {
	case keywordResult:
		n = &ir.Result{Offset: offset}
	case keywordArg:
		n, err = p.parseArg(offset)
	case keywordOld:
		var inner *ir.Sequence
		inner, err = p.parseNested()
		if err == nil && inner.Empty() {
			err = p.errorf("expected old expression")
		}
		if err == nil {
			n = &ir.Old{Inner: inner, Offset: offset}
		}
	case keywordForall, keywordExists:
		n, err = p.parseQuantifier(keyword, offset)
	default:
		return nil, newSyntaxError(p.text, p.pos-len([]rune(keyword)), "unrecognized directive '%s'", keyword)
	}
	if err != nil {
		return nil, err
	}

	if err := p.expect('}'); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) parseArg(offset int) (*ir.Arg, error) {
	p.skipBlanks()
	start := p.pos
	for !p.eof() && unicode.IsDigit(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf("expected argument number")
	}
	index, err := strconv.Atoi(string(p.src[start:p.pos]))
	if err != nil || index < 1 {
		return nil, newSyntaxError(p.text, start, "argument number must be a positive integer")
	}
	return &ir.Arg{Index: index, Offset: offset}, nil
}

// parseNested reads a directive body: leading blanks are dropped, the rest
// runs up to the closing brace.
func (p *parser) parseNested() (*ir.Sequence, error) {
	p.skipBlanks()
	return p.parseSequence(p.pos, false)
}

// parseQuantifier reads "(Type var: source) body".
func (p *parser) parseQuantifier(keyword string, offset int) (ir.Node, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}

	p.skipBlanks()
	typ := p.parseType()
	if typ == "" {
		return nil, p.errorf("expected type")
	}

	p.skipBlanks()
	name := p.parseWord()
	if name == "" {
		return nil, p.errorf("expected variable")
	}

	if err := p.expect(':'); err != nil {
		return nil, err
	}

	source, err := p.parseNested()
	if err != nil {
		return nil, err
	}
	if source.Empty() {
		return nil, p.errorf("expected source expression")
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}

	body, err := p.parseNested()
	if err != nil {
		return nil, err
	}
	if body.Empty() {
		return nil, p.errorf("expected %s body", keyword)
	}

	if keyword == keywordForall {
		return &ir.Forall{Type: typ, Var: name, Source: source, Body: body, Offset: offset}, nil
	}
	return &ir.Exists{Type: typ, Var: name, Source: source, Body: body, Offset: offset}, nil
}

func (p *parser) parseWord() string {
	start := p.pos
	if !p.eof() && isIdentStart(p.peek()) {
		p.pos++
		for !p.eof() && isIdentPart(p.peek()) {
			p.pos++
		}
	}
	return string(p.src[start:p.pos])
}

// parseType reads a dotted name such as "Item" or "collection.Item".
func (p *parser) parseType() string {
	start := p.pos
	for {
		if p.parseWord() == "" {
			break
		}
		if p.eof() || p.peek() != '.' {
			break
		}
		p.pos++
	}
	// A trailing dot is not part of the name.
	end := p.pos
	if end > start && p.src[end-1] == '.' {
		return ""
	}
	return string(p.src[start:end])
}

func (p *parser) skipBlanks() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

// expect skips blanks and consumes c.
func (p *parser) expect(c rune) error {
	p.skipBlanks()
	if p.eof() || p.peek() != c {
		return p.errorf("expected '%c'", c)
	}
	p.pos++
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
