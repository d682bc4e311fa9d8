package engine

// State is the per-receiver bookkeeping the engine needs for invariant
// checks. Guarded types embed it:
//
//	type Stack struct {
//		engine.State
//		items []any
//	}
//
// The zero value is a receiver still under construction.
//
// State is not synchronized. Concurrent guarded calls on the same receiver
// must be serialized by the caller.
type State struct {
	initialized bool
	checking    bool
}

// Receiver is implemented by every type that embeds State.
type Receiver interface {
	ContractState() *State
}

// ContractState returns s. It makes any type embedding State a Receiver.
func (s *State) ContractState() *State {
	return s
}

// Initialized reports whether construction finished.
func (s *State) Initialized() bool {
	return s.initialized
}

// MarkInitialized flags the receiver as fully constructed. Construct does
// this itself; call it directly only for receivers built without a guarded
// constructor.
func (s *State) MarkInitialized() {
	s.initialized = true
}

// Checking reports whether an invariant check is in progress.
func (s *State) Checking() bool {
	return s.checking
}

// stateOf returns the receiver's State, or nil if it has none.
func stateOf(receiver any) *State {
	r, ok := receiver.(Receiver)
	if !ok {
		return nil
	}
	return r.ContractState()
}
