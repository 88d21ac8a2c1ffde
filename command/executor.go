// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package command

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/go-hclog"

	"github.com/qihexiang/jobs-dispatcher/executor"
	"github.com/qihexiang/jobs-dispatcher/job"
)

// ExecutorCommand is spawned internally by a supervisor, already
// confined to the job's cgroup and dropped to its uid/gid, as
// `fleet executor DATA_JSON` (spec §6/§4.9).
type ExecutorCommand struct {
	UI cli.Ui
}

func (c *ExecutorCommand) Help() string {
	return "Usage: fleet executor DATA_JSON\n\n" +
		"  Internal: spawned by a supervisor to run a job's phases.\n"
}

func (c *ExecutorCommand) Synopsis() string {
	return "Internal: run a job's phases (spawned by supervisor)"
}

func (c *ExecutorCommand) Run(args []string) int {
	if len(args) != 1 {
		c.UI.Error("usage: fleet executor DATA_JSON")
		return 1
	}

	var cfg job.Configuration
	if err := json.Unmarshal([]byte(args[0]), &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid job configuration: %v\n", err)
		return 1
	}

	log := hclog.New(&hclog.LoggerOptions{Name: "executor", Level: hclog.Info, Output: os.Stderr})

	transcript, err := executor.Run(cfg, log)
	fmt.Fprint(os.Stdout, transcript)
	if err != nil {
		fmt.Fprintf(os.Stderr, "executor: %v\n", err)
		return 1
	}
	return 0
}
