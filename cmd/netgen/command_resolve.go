package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/g-arjones/tools-syskit/internal/config"
	"github.com/g-arjones/tools-syskit/internal/fixture"
	"github.com/g-arjones/tools-syskit/internal/resolver"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// ResolveCommand runs one full pipeline resolve against a fixture and
// reports the outcome.
type ResolveCommand struct {
	Ui cli.Ui
}

func (c *ResolveCommand) Help() string {
	return strings.TrimSpace(`
Usage: netgen resolve [options] <fixture-file>

  Loads a plan/registry fixture (JSON, or YAML with a .yaml/.yml
  extension) and runs one resolve against it, printing the resulting
  diagnostics.

Options:

  -on-error=drop|save|commit   Failure policy (default: drop).
  -graph-dir=path              Directory OnErrorSave writes dot files to.
  -log-level=level             hclog level (default: warn).
`)
}

func (c *ResolveCommand) Synopsis() string {
	return "Run one resolve against a plan fixture"
}

func (c *ResolveCommand) Run(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	onError := fs.String("on-error", "drop", "failure policy: drop, save, commit")
	graphDir := fs.String("graph-dir", ".", "directory for OnErrorSave dot dumps")
	logLevel := fs.String("log-level", "warn", "hclog level")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		c.Ui.Error("exactly one fixture file argument is required")
		return 1
	}

	loaded, err := fixture.Load(fs.Arg(0))
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	cfg := &config.Config{
		Registry: loaded.Registry,
		Logger:   hclog.New(&hclog.LoggerOptions{Name: "netgen", Level: hclog.LevelFromString(*logLevel)}),
	}
	r := resolver.New(loaded.Plan, cfg)

	opts := resolver.Options{RequirementTasks: loaded.Requirements, GraphDumpDir: *graphDir}
	switch *onError {
	case "save":
		opts.OnError = resolver.OnErrorSave
	case "commit":
		opts.OnError = resolver.OnErrorCommit
	default:
		opts.OnError = resolver.OnErrorDrop
	}

	result, err := r.Resolve(opts)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("resolve failed: %s", err))
		return 1
	}

	c.Ui.Output(fmt.Sprintf("instantiated %d requirement root(s)", len(result.Instantiated)))
	if result.Deployed != nil {
		c.Ui.Output(fmt.Sprintf("deployment selection: %d missing, %d ambiguous", len(result.Deployed.Missing), len(result.Deployed.Ambiguous)))
	}
	if result.Reconciled != nil {
		c.Ui.Output(fmt.Sprintf("reconciliation: %d kept, %d reused", len(result.Reconciled.Kept), len(result.Reconciled.Reused)))
	}
	return 0
}
