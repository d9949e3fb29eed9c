package main

import (
	"os"

	"github.com/mitchellh/cli"
)

// commands is the mapping of every available netgen subcommand, built
// once in main so each factory can close over the shared Ui.
var commands map[string]cli.CommandFactory

// Ui is the cli.Ui every subcommand writes through.
var Ui cli.Ui

func initCommands() {
	Ui = &cli.ColoredUi{
		Ui: &cli.BasicUi{
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
			Reader:      os.Stdin,
		},
		OutputColor: cli.UiColorNone,
		ErrorColor:  cli.UiColorRed,
		WarnColor:   cli.UiColorYellow,
	}

	commands = map[string]cli.CommandFactory{
		"resolve": func() (cli.Command, error) {
			return &ResolveCommand{Ui: Ui}, nil
		},
		"graph": func() (cli.Command, error) {
			return &GraphCommand{Ui: Ui}, nil
		},
	}
}
