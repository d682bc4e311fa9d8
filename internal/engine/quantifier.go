package engine

import (
	"fmt"
	"iter"
	"reflect"
)

// Indexed is the collection protocol quantifiers understand besides Go
// slices, arrays and iterators: Count elements addressed by Item(0) to
// Item(Count()-1).
type Indexed interface {
	Count() int
	Item(i int) any
}

// Elements returns the elements a quantifier ranges over.
//
// Accepted sources are nil (no elements), slices, arrays, pointers to
// arrays, iter.Seq[any], and Indexed values. Anything else is an error.
func Elements(src any) (iter.Seq[any], error) {
	switch s := src.(type) {
	case nil:
		return func(func(any) bool) {}, nil
	case iter.Seq[any]:
		return s, nil
	case func(func(any) bool):
		return s, nil
	case Indexed:
		return func(yield func(any) bool) {
			n := s.Count()
			for i := 0; i < n; i++ {
				if !yield(s.Item(i)) {
					return
				}
			}
		}, nil
	}

	rv := reflect.ValueOf(src)
	if rv.Kind() == reflect.Pointer && rv.Type().Elem().Kind() == reflect.Array {
		if rv.IsNil() {
			return func(func(any) bool) {}, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for i := 0; i < rv.Len(); i++ {
				if !yield(rv.Index(i).Interface()) {
					return
				}
			}
		}, nil
	}
	return nil, fmt.Errorf("cannot iterate over %T", src)
}
