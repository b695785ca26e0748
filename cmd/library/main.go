// Command library is the CLI for the ownership-scoped book record store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/library/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
