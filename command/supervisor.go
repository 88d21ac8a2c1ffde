// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package command

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/go-hclog"

	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/supervisor"
)

// SupervisorCommand is spawned internally by a vertex, never by a
// user, as `fleet supervisor TASK_ID DATA_JSON` (spec §6/§4.9).
type SupervisorCommand struct {
	UI cli.Ui
}

func (c *SupervisorCommand) Help() string {
	return "Usage: fleet supervisor TASK_ID DATA_JSON\n\n" +
		"  Internal: spawned by a vertex to run one job under cgroup confinement.\n"
}

func (c *SupervisorCommand) Synopsis() string {
	return "Internal: supervise one job (spawned by vertex)"
}

func (c *SupervisorCommand) Run(args []string) int {
	if len(args) != 2 {
		c.UI.Error("usage: fleet supervisor TASK_ID DATA_JSON")
		return 1
	}
	taskID, data := args[0], args[1]

	log := hclog.New(&hclog.LoggerOptions{Name: "supervisor", Level: hclog.Info})

	var cfg job.Configuration
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		c.UI.Error(fmt.Sprintf("invalid job configuration: %v", err))
		return 1
	}

	sup, err := supervisor.New(log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("failed to initialize supervisor: %v", err))
		return 1
	}

	if err := sup.Run(taskID, cfg); err != nil {
		log.Error("job failed", "task_id", taskID, "error", err)
		return 1
	}
	return 0
}
