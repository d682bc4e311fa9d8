package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/covenant/internal/ir"
	"github.com/roach88/covenant/internal/source"
)

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <package-dir>",
		Short: "Extract contracts from //covenant: directives",
		Long: `Scan a Go package for //covenant: directives and print the
declarations they produce, including the purity inferred for each
method body.

Malformed or misplaced directives are reported with their position and
exit with status 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runScan(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	decls, err := source.Scan(dir)
	if err != nil {
		var directiveErrs []string
		for _, e := range unjoin(err) {
			var de *source.DirectiveError
			if !errors.As(e, &de) {
				_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to scan package", err)
			}
			directiveErrs = append(directiveErrs, de.Error())
		}
		_ = formatter.Error(ErrCodeDirective,
			fmt.Sprintf("%d malformed directive(s)", len(directiveErrs)), directiveErrs)
		if formatter.Format != "json" {
			for _, msg := range directiveErrs {
				fmt.Fprintf(formatter.Writer, "  %s\n", msg)
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d malformed directive(s)", len(directiveErrs)))
	}

	formatter.VerboseLog("Found %d annotated type(s) in %s", len(decls), dir)

	if formatter.Format == "json" {
		if decls == nil {
			decls = []ir.TypeDecl{}
		}
		return formatter.Success(decls)
	}
	if len(decls) == 0 {
		fmt.Fprintln(formatter.Writer, "No annotated types found.")
		return nil
	}
	for i, d := range decls {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		printDecl(formatter.Writer, d)
	}
	return nil
}

func printDecl(w io.Writer, d ir.TypeDecl) {
	var flags []string
	if d.Abstract {
		flags = append(flags, "abstract")
	}
	if d.Skip {
		flags = append(flags, "skip")
	}
	fmt.Fprintf(w, "type %s", d.Name)
	if len(flags) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(flags, ", "))
	}
	fmt.Fprintln(w)
	if len(d.Parents) > 0 {
		fmt.Fprintf(w, "  parents: %s\n", strings.Join(d.Parents, ", "))
	}
	for _, inv := range d.Invariants {
		fmt.Fprintf(w, "  invariant %s\n", inv)
	}
	for _, op := range d.Operations {
		var marks []string
		switch {
		case op.Constructor:
			marks = append(marks, "constructor")
		case op.Pure:
			marks = append(marks, "pure")
		case op.InferredPure:
			marks = append(marks, "pure, inferred")
		}
		fmt.Fprintf(w, "  op %s", op.Name)
		if len(marks) > 0 {
			fmt.Fprintf(w, " (%s)", strings.Join(marks, ", "))
		}
		fmt.Fprintln(w)
		for _, r := range op.Requires {
			fmt.Fprintf(w, "    require %s\n", r)
		}
		for _, e := range op.Ensures {
			fmt.Fprintf(w, "    ensure  %s\n", e)
		}
	}
}
