package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/covenant/internal/ir"
	"github.com/roach88/covenant/internal/registry"
)

// ClauseView is one clause as printed by explain.
type ClauseView struct {
	Source        string `json:"source"`
	DeclaringType string `json:"declaring_type"`
}

// RequireGroupView is the precondition group one type contributes.
type RequireGroupView struct {
	DeclaringType string   `json:"declaring_type"`
	Clauses       []string `json:"clauses"`
}

// TypeExplanation is the composed view of a type.
type TypeExplanation struct {
	Type        string       `json:"type"`
	Ancestors   []string     `json:"ancestors"`
	Abstract    bool         `json:"abstract"`
	Skip        bool         `json:"skip"`
	Guarded     bool         `json:"guarded"`
	Invariants  []ClauseView `json:"invariants"`
	Operations  []string     `json:"operations"`
	Fingerprint string       `json:"fingerprint"`
}

// OperationExplanation is the composed contract of one operation.
type OperationExplanation struct {
	Type        string             `json:"type"`
	Operation   string             `json:"operation"`
	Constructor bool               `json:"constructor"`
	Pure        bool               `json:"pure"`
	PureSource  string             `json:"pure_source,omitempty"`
	Requires    []RequireGroupView `json:"requires"`
	Ensures     []ClauseView       `json:"ensures"`
	OldSlots    []string           `json:"old_slots"`
	Fingerprint string             `json:"fingerprint"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <specs-dir> <Type[.operation]>",
		Short: "Show the composed contract of a type or operation",
		Long: `Show a contract as the engine sees it after composition.

For a type: its ancestors in composition order, the inherited and own
invariant clauses, and the operations declared along the hierarchy.

For an operation: the precondition groups (any one group may hold), the
postconditions, the {old} snapshot slots, and the resolved purity.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runExplain(opts *RootOptions, specsDir, subject string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := opts.Logger(formatter.GetErrWriter())

	reg, _, err := LoadRegistry(specsDir, registry.WithLogger(logger))
	if err != nil {
		code := ErrCodeGeneric
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load specs", err)
	}

	typ, op, hasOp := strings.Cut(subject, ".")
	if _, ok := reg.Decl(typ); !ok {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("unknown type %q", typ), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown type %q", typ))
	}

	if !hasOp {
		ex, err := explainType(reg, typ)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to compose type", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(ex)
		}
		printTypeExplanation(formatter.Writer, ex)
		return nil
	}

	ex, err := explainOperation(reg, typ, op)
	if errors.Is(err, registry.ErrUnknownOperation) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no contract for %s", subject), nil)
		return WrapExitError(ExitCommandError, "unknown operation", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to compose operation", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(ex)
	}
	printOperationExplanation(formatter.Writer, ex)
	return nil
}

func explainType(reg *registry.Registry, typ string) (*TypeExplanation, error) {
	ancestors, err := reg.Ancestors(typ)
	if err != nil {
		return nil, err
	}
	tc, err := reg.Type(typ)
	if err != nil {
		return nil, err
	}
	fp, err := ir.TypeFingerprint(tc)
	if err != nil {
		return nil, err
	}
	decl, _ := reg.Decl(typ)

	ops := make(map[string]bool)
	for _, name := range append(append([]string(nil), ancestors...), typ) {
		d, _ := reg.Decl(name)
		for _, o := range d.Operations {
			ops[o.Name] = true
		}
	}
	opNames := make([]string, 0, len(ops))
	for name := range ops {
		opNames = append(opNames, name)
	}
	sort.Strings(opNames)

	return &TypeExplanation{
		Type:        typ,
		Ancestors:   nonNil(ancestors),
		Abstract:    decl.Abstract,
		Skip:        decl.Skip,
		Guarded:     reg.Guarded(typ),
		Invariants:  clauseViews(tc.Invariants),
		Operations:  opNames,
		Fingerprint: fp,
	}, nil
}

func explainOperation(reg *registry.Registry, typ, op string) (*OperationExplanation, error) {
	oc, err := reg.Operation(typ, op)
	if err != nil {
		return nil, err
	}
	fp, err := ir.OperationFingerprint(oc)
	if err != nil {
		return nil, err
	}

	ex := &OperationExplanation{
		Type:        typ,
		Operation:   op,
		Constructor: oc.Constructor,
		Pure:        oc.Pure,
		PureSource:  oc.PureSource,
		Requires:    []RequireGroupView{},
		Ensures:     clauseViews(oc.Ensures),
		OldSlots:    []string{},
		Fingerprint: fp,
	}
	for _, g := range oc.Requires {
		view := RequireGroupView{DeclaringType: g.DeclaringType}
		for _, c := range g.Clauses {
			view.Clauses = append(view.Clauses, c.String())
		}
		ex.Requires = append(ex.Requires, view)
	}
	for _, old := range oc.OldSlots() {
		ex.OldSlots = append(ex.OldSlots, old.String())
	}
	return ex, nil
}

func clauseViews(clauses []*ir.Clause) []ClauseView {
	out := make([]ClauseView, 0, len(clauses))
	for _, c := range clauses {
		out = append(out, ClauseView{Source: c.String(), DeclaringType: c.DeclaringType})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func printTypeExplanation(w io.Writer, ex *TypeExplanation) {
	fmt.Fprintf(w, "type %s\n", ex.Type)
	if len(ex.Ancestors) > 0 {
		fmt.Fprintf(w, "  ancestors:   %s\n", strings.Join(ex.Ancestors, ", "))
	}
	switch {
	case ex.Skip:
		fmt.Fprintln(w, "  guarded:     no (skip)")
	case ex.Abstract:
		fmt.Fprintln(w, "  guarded:     no (abstract)")
	default:
		fmt.Fprintln(w, "  guarded:     yes")
	}
	fmt.Fprintf(w, "  fingerprint: %s\n", ex.Fingerprint)

	fmt.Fprintln(w, "  invariant:")
	if len(ex.Invariants) == 0 {
		fmt.Fprintln(w, "    (none)")
	}
	for _, c := range ex.Invariants {
		fmt.Fprintf(w, "    %s  [%s]\n", c.Source, c.DeclaringType)
	}
	if len(ex.Operations) > 0 {
		fmt.Fprintf(w, "  operations:  %s\n", strings.Join(ex.Operations, ", "))
	}
}

func printOperationExplanation(w io.Writer, ex *OperationExplanation) {
	fmt.Fprintf(w, "operation %s.%s\n", ex.Type, ex.Operation)
	if ex.Constructor {
		fmt.Fprintln(w, "  constructor: yes")
	}
	if ex.Pure {
		fmt.Fprintf(w, "  pure:        yes (%s)\n", ex.PureSource)
	} else {
		fmt.Fprintln(w, "  pure:        no")
	}
	fmt.Fprintf(w, "  fingerprint: %s\n", ex.Fingerprint)

	fmt.Fprintln(w, "  require (one group must hold):")
	if len(ex.Requires) == 0 {
		fmt.Fprintln(w, "    (none)")
	}
	for _, g := range ex.Requires {
		fmt.Fprintf(w, "    [%s]\n", g.DeclaringType)
		for _, c := range g.Clauses {
			fmt.Fprintf(w, "      %s\n", c)
		}
	}

	fmt.Fprintln(w, "  ensure:")
	if len(ex.Ensures) == 0 {
		fmt.Fprintln(w, "    (none)")
	}
	for _, c := range ex.Ensures {
		fmt.Fprintf(w, "    %s  [%s]\n", c.Source, c.DeclaringType)
	}
	for i, old := range ex.OldSlots {
		fmt.Fprintf(w, "  old[%d]:      %s\n", i, old)
	}
}
