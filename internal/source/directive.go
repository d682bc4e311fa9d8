package source

import (
	"fmt"
	"go/token"
	"strings"
)

// Prefix starts every contract directive. Like //go: directives, there is
// no space after the slashes.
const Prefix = "//covenant:"

// DirectiveKind names a directive.
type DirectiveKind string

const (
	DirectiveRequire     DirectiveKind = "require"
	DirectiveEnsure      DirectiveKind = "ensure"
	DirectiveInvariant   DirectiveKind = "invariant"
	DirectiveParent      DirectiveKind = "parent"
	DirectivePure        DirectiveKind = "pure"
	DirectiveConstructor DirectiveKind = "constructor"
	DirectiveAbstract    DirectiveKind = "abstract"
	DirectiveSkip        DirectiveKind = "skip"
)

// Directive is one parsed //covenant: comment line.
type Directive struct {
	Kind DirectiveKind
	Arg  string
	Pos  token.Pos
}

// ParseDirective splits a comment into kind and argument. ok is false when
// text is not a directive at all. A trailing // comment ends the argument.
func ParseDirective(text string) (d Directive, ok bool) {
	rest, ok := strings.CutPrefix(text, Prefix)
	if !ok {
		return Directive{}, false
	}
	kind, arg, _ := strings.Cut(rest, " ")
	if i := strings.Index(arg, "//"); i >= 0 {
		arg = arg[:i]
	}
	return Directive{Kind: DirectiveKind(kind), Arg: strings.TrimSpace(arg)}, true
}

// Validate checks the kind and the presence of an argument.
func (d Directive) Validate() error {
	switch d.Kind {
	case DirectiveRequire, DirectiveEnsure, DirectiveInvariant, DirectiveParent:
		if d.Arg == "" {
			return fmt.Errorf("covenant:%s needs an argument", d.Kind)
		}
	case DirectivePure, DirectiveConstructor, DirectiveAbstract, DirectiveSkip:
		if d.Arg != "" {
			return fmt.Errorf("covenant:%s takes no argument, got %q", d.Kind, d.Arg)
		}
	case "":
		return fmt.Errorf("covenant directive without a name")
	default:
		return fmt.Errorf("unknown covenant directive %q", string(d.Kind))
	}
	return nil
}

// onType reports whether the directive belongs on a type declaration.
func (d Directive) onType() bool {
	switch d.Kind {
	case DirectiveInvariant, DirectiveParent, DirectiveAbstract, DirectiveSkip:
		return true
	}
	return false
}

// Parents splits a parent directive argument on commas and blanks.
func (d Directive) Parents() []string {
	return strings.FieldsFunc(d.Arg, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// DirectiveError locates a problem with a directive or the declaration it
// is attached to.
type DirectiveError struct {
	Pos     token.Position
	Message string
}

func (e *DirectiveError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}
