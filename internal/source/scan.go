package source

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/roach88/covenant/internal/ir"
)

// Scan parses the non-test Go files of one package directory and returns
// the contract declarations found in them, in source order.
//
// Every directive problem is reported; the returned error joins one
// *DirectiveError per problem.
func Scan(dir string) ([]ir.TypeDecl, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	fset := token.NewFileSet()
	var files []*ast.File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no Go files in %s", dir)
	}
	return ScanFiles(fset, files)
}

// ScanFiles is Scan over already parsed files. The files must have been
// parsed with parser.ParseComments.
func ScanFiles(fset *token.FileSet, files []*ast.File) ([]ir.TypeDecl, error) {
	var errs []error
	c := newCollector(func(pos token.Pos, format string, args ...any) {
		errs = append(errs, &DirectiveError{Pos: fset.Position(pos), Message: fmt.Sprintf(format, args...)})
	})
	c.collect(inspector.New(files), files)
	decls := c.decls()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return decls, nil
}
