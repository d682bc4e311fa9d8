package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownType is returned when a type, or one of its ancestors, was
	// never declared.
	ErrUnknownType = errors.New("unknown type")

	// ErrUnknownOperation is returned when neither a type nor any of its
	// ancestors declares the operation.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrDuplicateType is returned when a type is declared twice.
	ErrDuplicateType = errors.New("duplicate type")
)

// CycleError reports an inheritance cycle found while composing a contract.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("inheritance cycle: %s", strings.Join(e.Path, " → "))
}

// IsCycleError reports whether err is or wraps a CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
