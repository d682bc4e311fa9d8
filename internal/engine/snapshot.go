package engine

// OldSnapshot holds the pre-call values of an operation's {old} slots.
//
// Slots are positional; OperationContract.OldIndex maps each {old} node
// to its slot. A snapshot is created by SnapshotOld right before the body
// runs and read once by CheckPostcondition.
type OldSnapshot struct {
	values []any
	filled []bool
}

// NewOldSnapshot allocates a snapshot with n empty slots.
func NewOldSnapshot(n int) *OldSnapshot {
	return &OldSnapshot{
		values: make([]any, n),
		filled: make([]bool, n),
	}
}

// Len returns the number of slots.
func (s *OldSnapshot) Len() int {
	return len(s.values)
}

// Value returns the value captured in slot i.
func (s *OldSnapshot) Value(i int) (any, bool) {
	if i < 0 || i >= len(s.values) || !s.filled[i] {
		return nil, false
	}
	return s.values[i], true
}

func (s *OldSnapshot) set(i int, v any) {
	s.values[i] = v
	s.filled[i] = true
}

func (s *OldSnapshot) captured(i int) bool {
	return i >= 0 && i < len(s.filled) && s.filled[i]
}
