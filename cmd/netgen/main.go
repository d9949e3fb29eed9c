// Command netgen is a thin demonstration harness for the network
// generation engine: it loads a plan/registry fixture, runs one resolve,
// and prints the resulting diagnostics or dot graphs. It exists to
// exercise the engine end to end; it is not the framework's real CLI.
package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	initCommands()

	args := os.Args[1:]
	c := cli.NewCLI("netgen", "0.1.0")
	c.Args = args
	c.Commands = commands
	c.HelpFunc = cli.BasicHelpFunc("netgen")

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "netgen: %s\n", err)
		return 1
	}
	return exitCode
}
