package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/covenant/internal/engine"
)

// CheckFilter narrows ListChecks. Zero fields match everything.
type CheckFilter struct {
	// Kind selects one contract kind: require, ensure or invariant.
	Kind engine.ViolationKind

	// Outcome selects pass, violation or skip.
	Outcome engine.Outcome

	// Subject is a type name, matching every operation of the type, or
	// "Type.operation".
	Subject string

	CallID      string
	Fingerprint string

	// Limit caps the number of rows; 0 means no limit.
	Limit int
}

const checkColumns = `id, call_id, seq, phase, kind, type_name, operation, outcome, reason,
	clause, declaring_type, message, fingerprint, clauses, duration_ns`

// ListChecks returns the journal rows matching filter.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListChecks(ctx context.Context, filter CheckFilter) ([]Check, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Subject != "" {
		typ, op, hasOp := strings.Cut(filter.Subject, ".")
		where = append(where, "type_name = ?")
		args = append(args, typ)
		if hasOp {
			where = append(where, "operation = ?")
			args = append(args, op)
		}
	}
	if filter.CallID != "" {
		where = append(where, "call_id = ?")
		args = append(args, filter.CallID)
	}
	if filter.Fingerprint != "" {
		where = append(where, "fingerprint = ?")
		args = append(args, filter.Fingerprint)
	}

	query := "SELECT " + checkColumns + " FROM checks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	checks := []Check{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checks: %w", err)
	}
	return checks, nil
}

// SubjectSummary counts the outcomes recorded for one subject and kind.
type SubjectSummary struct {
	Type       string               `json:"type"`
	Operation  string               `json:"operation"`
	Kind       engine.ViolationKind `json:"kind"`
	Passes     int                  `json:"passes"`
	Violations int                  `json:"violations"`
	Skips      int                  `json:"skips"`
}

// Summarize aggregates the journal per subject and kind, ordered by type,
// operation and kind.
func (s *Store) Summarize(ctx context.Context) ([]SubjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type_name, operation, kind,
			SUM(CASE WHEN outcome = 'pass' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'violation' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'skip' THEN 1 ELSE 0 END)
		FROM checks
		GROUP BY type_name, operation, kind
		ORDER BY type_name COLLATE BINARY ASC, operation COLLATE BINARY ASC, kind ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("summarize checks: %w", err)
	}
	defer rows.Close()

	out := []SubjectSummary{}
	for rows.Next() {
		var (
			sum  SubjectSummary
			kind string
		)
		if err := rows.Scan(&sum.Type, &sum.Operation, &kind, &sum.Passes, &sum.Violations, &sum.Skips); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.Kind = engine.ViolationKind(kind)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest recorded seq, or 0 for an empty journal.
// Engines appending to an existing journal start their clock here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM checks").Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanCheck(rows *sql.Rows) (Check, error) {
	var (
		c                    Check
		phase, kind, outcome string
	)
	err := rows.Scan(
		&c.ID, &c.CallID, &c.Seq, &phase, &kind, &c.Type, &c.Operation, &outcome, &c.Reason,
		&c.Clause, &c.DeclaringType, &c.Message, &c.Fingerprint, &c.Clauses, &c.DurationNS,
	)
	if err != nil {
		return Check{}, fmt.Errorf("scan check: %w", err)
	}
	c.Phase = engine.Phase(phase)
	c.Kind = engine.ViolationKind(kind)
	c.Outcome = engine.Outcome(outcome)
	return c, nil
}
