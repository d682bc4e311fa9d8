// Command covenant validates, explains and checks contract declarations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/covenant/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
