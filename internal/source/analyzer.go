package source

import (
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

const doc = `check //covenant: contract directives

Reports unknown or misplaced directives, clauses that do not parse or use
directives their kind forbids, constructors that do not return their type,
and methods declared pure whose body writes state.`

// Analyzer checks contract directives.
var Analyzer = &analysis.Analyzer{
	Name:     "covenant",
	Doc:      doc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	c := newCollector(pass.Reportf)
	c.collect(insp, pass.Files)
	c.decls()
	return nil, nil
}
