package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/covenant/internal/engine"
)

// Check is one journal row.
type Check struct {
	ID            int64                `json:"id"`
	CallID        string               `json:"call_id"`
	Seq           int64                `json:"seq"`
	Phase         engine.Phase         `json:"phase"`
	Kind          engine.ViolationKind `json:"kind"`
	Type          string               `json:"type"`
	Operation     string               `json:"operation"`
	Outcome       engine.Outcome       `json:"outcome"`
	Reason        string               `json:"reason,omitempty"`
	Clause        string               `json:"clause,omitempty"`
	DeclaringType string               `json:"declaring_type,omitempty"`
	Message       string               `json:"message,omitempty"`
	Fingerprint   string               `json:"fingerprint,omitempty"`
	Clauses       int                  `json:"clauses"`
	DurationNS    int64                `json:"duration_ns"`
}

// Subject returns "Type.operation", or the type alone for invariant rows.
func (c Check) Subject() string {
	if c.Kind == engine.KindInvariant || c.Operation == "" {
		return c.Type
	}
	return c.Type + "." + c.Operation
}

// KindOf returns the contract kind a phase checks. Snapshots belong to
// the postcondition.
func KindOf(phase engine.Phase) engine.ViolationKind {
	switch phase {
	case engine.PhaseRequire:
		return engine.KindRequire
	case engine.PhaseInvariantBefore, engine.PhaseInvariantAfter:
		return engine.KindInvariant
	default:
		return engine.KindEnsure
	}
}

// FromEvent converts an engine check event into a journal row.
func FromEvent(ev engine.CheckEvent) Check {
	return Check{
		CallID:        ev.CallID,
		Seq:           ev.Seq,
		Phase:         ev.Phase,
		Kind:          KindOf(ev.Phase),
		Type:          ev.Type,
		Operation:     ev.Operation,
		Outcome:       ev.Outcome,
		Reason:        ev.Reason,
		Clause:        ev.Clause,
		DeclaringType: ev.DeclaringType,
		Message:       ev.Message,
		Fingerprint:   ev.Fingerprint,
		Clauses:       ev.Clauses,
		DurationNS:    ev.Duration.Nanoseconds(),
	}
}

// RecordCheck inserts a check row.
// Uses ON CONFLICT(call_id, seq) DO NOTHING for idempotency - recording the
// same event twice is silently ignored.
func (s *Store) RecordCheck(ctx context.Context, c Check) error {
	if c.CallID == "" {
		return fmt.Errorf("record check: call id is required")
	}
	kind := c.Kind
	if kind == "" {
		kind = KindOf(c.Phase)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checks
		(call_id, seq, phase, kind, type_name, operation, outcome, reason,
		 clause, declaring_type, message, fingerprint, clauses, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id, seq) DO NOTHING
	`,
		c.CallID,
		c.Seq,
		string(c.Phase),
		string(kind),
		c.Type,
		c.Operation,
		string(c.Outcome),
		c.Reason,
		c.Clause,
		c.DeclaringType,
		c.Message,
		c.Fingerprint,
		c.Clauses,
		c.DurationNS,
	)
	if err != nil {
		return fmt.Errorf("record check: %w", err)
	}
	return nil
}

// Journal records engine check events in a Store.
//
// Write failures are logged and never fail the guarded call.
type Journal struct {
	store   *Store
	logger  *slog.Logger
	skipped bool
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithJournalLogger sets the logger for write failures.
func WithJournalLogger(logger *slog.Logger) JournalOption {
	return func(j *Journal) {
		j.logger = logger
	}
}

// WithSkipped also records skipped phases. By default only executed
// phases are journaled.
func WithSkipped() JournalOption {
	return func(j *Journal) {
		j.skipped = true
	}
}

// NewJournal creates an engine observer writing to s.
func NewJournal(s *Store, opts ...JournalOption) *Journal {
	j := &Journal{
		store:  s,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

var _ engine.Observer = (*Journal)(nil)

// ObserveCheck records ev.
func (j *Journal) ObserveCheck(ctx context.Context, ev engine.CheckEvent) {
	if ev.Outcome == engine.OutcomeSkip && !j.skipped {
		return
	}
	if err := j.store.RecordCheck(ctx, FromEvent(ev)); err != nil {
		j.logger.Error("journal write failed",
			"call_id", ev.CallID,
			"seq", ev.Seq,
			"phase", ev.Phase,
			"error", err)
	}
}
