package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/covenant/internal/engine"
	"github.com/roach88/covenant/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	DB      string
	Kind    string
	Outcome string
	Subject string
	CallID  string
	Limit   int
	Summary bool
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query a check journal",
		Long: `Query the SQLite journal written by "covenant check --journal".

Rows are listed in sequence order. Filters combine; a subject is either
a type name, matching all its operations, or Type.operation.

Examples:
  covenant journal --db checks.db --outcome violation
  covenant journal --db checks.db --subject Stack.push --kind require
  covenant journal --db checks.db --summary`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database (defaults to the config file's journal)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by kind (require|ensure|invariant)")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "filter by outcome (pass|violation|skip)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "filter by Type or Type.operation")
	cmd.Flags().StringVar(&opts.CallID, "call", "", "filter by call id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of rows (0 = all)")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "aggregate outcomes per subject and kind")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	path := opts.DB
	if path == "" {
		path = opts.Config.Journal
	}
	if path == "" {
		_ = formatter.Error(ErrCodeGeneric, "no journal given: use --db or set journal in the config file", nil)
		return NewExitError(ExitCommandError, "no journal given")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", path), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}

	filter := store.CheckFilter{
		Kind:    engine.ViolationKind(opts.Kind),
		Outcome: engine.Outcome(opts.Outcome),
		Subject: opts.Subject,
		CallID:  opts.CallID,
		Limit:   opts.Limit,
	}
	if err := validateFilter(filter); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	ctx := context.Background()
	if opts.Summary {
		summary, err := st.Summarize(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to summarize journal", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(summary)
		}
		printSummary(formatter.Writer, summary)
		return nil
	}

	checks, err := st.ListChecks(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query journal", err)
	}
	formatter.VerboseLog("%d row(s) matched", len(checks))
	if formatter.Format == "json" {
		return formatter.Success(checks)
	}
	printChecks(formatter.Writer, checks)
	return nil
}

func validateFilter(f store.CheckFilter) error {
	switch f.Kind {
	case "", engine.KindRequire, engine.KindEnsure, engine.KindInvariant:
	default:
		return fmt.Errorf("unknown kind %q", f.Kind)
	}
	switch f.Outcome {
	case "", engine.OutcomePass, engine.OutcomeViolation, engine.OutcomeSkip:
	default:
		return fmt.Errorf("unknown outcome %q", f.Outcome)
	}
	if f.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", f.Limit)
	}
	return nil
}

func printChecks(w io.Writer, checks []store.Check) {
	if len(checks) == 0 {
		fmt.Fprintln(w, "No checks recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tCALL\tSUBJECT\tPHASE\tOUTCOME\tDETAIL")
	for _, c := range checks {
		detail := c.Reason
		if c.Outcome == engine.OutcomeViolation {
			detail = c.Message
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", c.Seq, c.CallID, c.Subject(), c.Phase, c.Outcome, detail)
	}
	tw.Flush()
}

func printSummary(w io.Writer, summary []store.SubjectSummary) {
	if len(summary) == 0 {
		fmt.Fprintln(w, "No checks recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tKIND\tPASS\tVIOLATION\tSKIP")
	for _, s := range summary {
		fmt.Fprintf(tw, "%s.%s\t%s\t%d\t%d\t%d\n", s.Type, s.Operation, s.Kind, s.Passes, s.Violations, s.Skips)
	}
	tw.Flush()
}
