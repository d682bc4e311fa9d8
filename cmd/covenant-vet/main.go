// Command covenant-vet reports malformed //covenant: directives.
//
// It runs standalone or as a go vet tool:
//
//	go vet -vettool=$(which covenant-vet) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/roach88/covenant/internal/source"
)

func main() {
	singlechecker.Main(source.Analyzer)
}
