package main

import (
	"fmt"
	"os"

	"github.com/conduitdb/conduit/cmd/conduit/cli"
)

// Build metadata, stamped by the release pipeline via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		fmt.Fprintf(os.Stderr, "conduit: %v\n", err)
		os.Exit(1)
	}
}
