package harness

import (
	"maps"

	"github.com/roach88/covenant/internal/engine"
)

// Object is a scenario receiver whose state lives in a map. Each field is
// exposed to assertions as a function of no arguments, read when called,
// so {old count()} captures the value before the body runs.
type Object struct {
	engine.State

	Name   string
	Type   string
	Fields map[string]any
}

func newObject(name string, spec ObjectSpec) *Object {
	o := &Object{Name: name, Type: spec.Type, Fields: make(map[string]any, len(spec.State))}
	maps.Copy(o.Fields, spec.State)
	if spec.Initialized {
		o.MarkInitialized()
	}
	return o
}

// ContractBindings exposes every field as a getter.
func (o *Object) ContractBindings() map[string]any {
	out := make(map[string]any, len(o.Fields))
	for name := range o.Fields {
		out[name] = func() any { return o.Fields[name] }
	}
	return out
}

// apply writes fields.
func (o *Object) apply(fields map[string]any) {
	maps.Copy(o.Fields, fields)
}

// Snapshot returns a copy of the fields.
func (o *Object) Snapshot() map[string]any {
	return maps.Clone(o.Fields)
}
