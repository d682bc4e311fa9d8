package harness

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/covenant/internal/compiler"
	"github.com/roach88/covenant/internal/ir"
	"github.com/roach88/covenant/internal/source"
)

// LoadDeclarations reads type declarations from every path in order.
// A directory is scanned for //covenant: directives; anything else is
// compiled as a CUE file.
func LoadDeclarations(paths []string) ([]ir.TypeDecl, error) {
	ctx := cuecontext.New()
	var decls []ir.TypeDecl
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("spec %s: %w", p, err)
		}

		if info.IsDir() {
			found, err := source.Scan(p)
			if err != nil {
				return nil, fmt.Errorf("spec %s: %w", p, err)
			}
			decls = append(decls, found...)
			continue
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("spec %s: %w", p, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(p))
		found, err := compiler.CompileDeclarations(v)
		if err != nil {
			return nil, fmt.Errorf("spec %s: %w", p, err)
		}
		decls = append(decls, found...)
	}
	return decls, nil
}
