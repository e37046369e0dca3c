// Command mondai checks and repairs JLPT exam records.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/mondai/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !reported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}

// reported tells whether a command already printed err through its output
// formatter. Argument and flag errors from cobra are not printed by anyone.
func reported(err error) bool {
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return exitErr.Err != nil || exitErr.Code == cli.ExitFailure
}
