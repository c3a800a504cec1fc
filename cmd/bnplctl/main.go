// Command bnplctl drives a BNPL ledger from YAML scenarios and runs its
// maintenance jobs.
package main

import (
	"fmt"
	"os"

	"github.com/xraph/bnpl/cmd/bnplctl/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
