// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Command fleet is the single multi-mode binary: dispatcher, vertex,
// supervisor, executor, and client subcommands (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/cli"

	"github.com/qihexiang/jobs-dispatcher/command"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ui := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	c := cli.NewCLI("fleet", "0.1.0")
	c.Args = args
	c.Commands = map[string]cli.CommandFactory{
		"dispatcher": func() (cli.Command, error) {
			return &command.DispatcherCommand{UI: ui}, nil
		},
		"vertex": func() (cli.Command, error) {
			return &command.VertexCommand{UI: ui}, nil
		},
		"supervisor": func() (cli.Command, error) {
			return &command.SupervisorCommand{UI: ui}, nil
		},
		"executor": func() (cli.Command, error) {
			return &command.ExecutorCommand{UI: ui}, nil
		},
		"client submit": func() (cli.Command, error) {
			return &command.ClientSubmitCommand{UI: ui}, nil
		},
		"client delete": func() (cli.Command, error) {
			return &command.ClientDeleteCommand{UI: ui}, nil
		},
		"client status": func() (cli.Command, error) {
			return &command.ClientStatusCommand{UI: ui}, nil
		},
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error executing CLI: %v\n", err)
		return 1
	}
	return exitCode
}
