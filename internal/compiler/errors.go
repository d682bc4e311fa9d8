package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/covenant/internal/ir"
)

// SyntaxError reports a malformed assertion. It is a preparation-time
// failure: a type with a syntax error in any clause is not instrumented.
type SyntaxError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Offset  int    `json:"offset"`
}

func newSyntaxError(src string, offset int, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Source:  src,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("{%s}: %s at %d", e.Source, e.Message, e.Offset)
}

// Snippet returns up to 16 runes of source starting at the error offset.
func (e *SyntaxError) Snippet() string {
	runes := []rune(e.Source)
	if e.Offset >= len(runes) {
		return ""
	}
	end := min(e.Offset+16, len(runes))
	return string(runes[e.Offset:end])
}

// IsSyntaxError reports whether err is or wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// Clause error codes (E120-E129).
const (
	ErrOldInRequire      = "E120" // {old} used in a precondition
	ErrResultInRequire   = "E121" // {result} used in a precondition
	ErrArgInInvariant    = "E122" // {arg} used in an invariant
	ErrOldInInvariant    = "E123" // {old} used in an invariant
	ErrResultInInvariant = "E124" // {result} used in an invariant
	ErrResultInOld       = "E125" // {result} inside {old}
	ErrQuantifierInOld   = "E126" // {forall} or {exists} inside {old}
	ErrNestedOld         = "E127" // {old} inside {old}
	ErrUnknownClauseKind = "E128" // clause kind is not require, ensure or invariant
	ErrEmptyClause       = "E129" // clause has no content
)

// ClauseError reports a directive used where its clause kind forbids it.
type ClauseError struct {
	Kind          ir.ClauseKind `json:"kind"`
	DeclaringType string        `json:"declaring_type,omitempty"`
	Source        string        `json:"source"`
	Code          string        `json:"code"`
	Message       string        `json:"message"`
	Offset        int           `json:"offset"`
}

// Error implements the error interface.
func (e *ClauseError) Error() string {
	where := string(e.Kind)
	if e.DeclaringType != "" {
		where = e.DeclaringType + " " + where
	}
	return fmt.Sprintf("[%s] %s {%s}: %s at %d", e.Code, where, e.Source, e.Message, e.Offset)
}

// IsClauseError reports whether err is or wraps a ClauseError.
func IsClauseError(err error) bool {
	var ce *ClauseError
	return errors.As(err, &ce)
}
