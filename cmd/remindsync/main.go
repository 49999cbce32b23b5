// Command remindsync manages reminders while it keeps their alerts and
// calendar events in sync.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/remindsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
