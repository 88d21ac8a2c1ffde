// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package command

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/cli"

	"github.com/qihexiang/jobs-dispatcher/dispatcher"
	"github.com/qihexiang/jobs-dispatcher/job"
)

// adminRequest writes req to the admin socket at socketPath, shuts
// down the write half, and decodes the single JSON response — the
// wire protocol spec §4.6/§6 describe.
func adminRequest(socketPath string, req dispatcher.Request) (dispatcher.Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return dispatcher.Response{}, fmt.Errorf("command: connect to admin socket %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return dispatcher.Response{}, fmt.Errorf("command: encode request: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	var resp dispatcher.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return dispatcher.Response{}, fmt.Errorf("command: decode response: %w", err)
	}
	return resp, nil
}

// ClientSubmitCommand submits a job read from a JSON file to a named
// queue (spec §6's `client submit QUEUE FILE`).
type ClientSubmitCommand struct {
	UI cli.Ui
}

func (c *ClientSubmitCommand) Help() string {
	return "Usage: fleet client submit QUEUE FILE\n\n" +
		"  Submits the job configuration in FILE to QUEUE.\n"
}

func (c *ClientSubmitCommand) Synopsis() string { return "Submit a job to a queue" }

func (c *ClientSubmitCommand) Run(args []string) int {
	if len(args) != 2 {
		c.UI.Error("usage: fleet client submit QUEUE FILE")
		return 1
	}
	queueName, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		c.UI.Error(fmt.Sprintf("failed to read %s: %v", path, err))
		return 1
	}
	var cfg job.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		c.UI.Error(fmt.Sprintf("invalid job configuration in %s: %v", path, err))
		return 1
	}

	resp, err := adminRequest(defaultSocketPath(), dispatcher.Request{
		Kind:  dispatcher.RequestSubmitJob,
		Queue: queueName,
		Job:   cfg,
	})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	switch resp.Kind {
	case dispatcher.ResponseSubmitSuccess:
		c.UI.Output(resp.TaskID)
		return 0
	case dispatcher.ResponseSubmitFailed:
		c.UI.Error("submission refused (unknown queue or admission policy)")
		return 1
	default:
		c.UI.Error(fmt.Sprintf("unexpected response: %s", resp.Kind))
		return 1
	}
}

// ClientDeleteCommand removes a pending job by task id (spec §6's
// `client delete ID`).
type ClientDeleteCommand struct {
	UI cli.Ui
}

func (c *ClientDeleteCommand) Help() string {
	return "Usage: fleet client delete TASK_ID\n\n  Removes a pending job.\n"
}

func (c *ClientDeleteCommand) Synopsis() string { return "Delete a pending job" }

func (c *ClientDeleteCommand) Run(args []string) int {
	if len(args) != 1 {
		c.UI.Error("usage: fleet client delete TASK_ID")
		return 1
	}
	resp, err := adminRequest(defaultSocketPath(), dispatcher.Request{
		Kind:   dispatcher.RequestDeleteJob,
		TaskID: args[0],
	})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	switch resp.Kind {
	case dispatcher.ResponseDeleteSuccess:
		return 0
	case dispatcher.ResponseDeleteFailed:
		c.UI.Error(fmt.Sprintf("delete failed: %s", resp.Reason))
		return 1
	default:
		c.UI.Error(fmt.Sprintf("unexpected response: %s", resp.Kind))
		return 1
	}
}

// ClientStatusCommand prints a summary of every queue and vertex
// (spec §6's `client status`).
type ClientStatusCommand struct {
	UI cli.Ui
}

func (c *ClientStatusCommand) Help() string {
	return "Usage: fleet client status\n\n  Prints queue and vertex status.\n"
}

func (c *ClientStatusCommand) Synopsis() string { return "Show dispatcher status" }

func (c *ClientStatusCommand) Run(args []string) int {
	resp, err := adminRequest(defaultSocketPath(), dispatcher.Request{Kind: dispatcher.RequestStatus})
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	if resp.Kind != dispatcher.ResponseStatus {
		c.UI.Error(fmt.Sprintf("unexpected response: %s", resp.Kind))
		return 1
	}
	for _, q := range resp.Queues {
		c.UI.Output(fmt.Sprintf("queue %-20s pending=%-4d queued=%-4d running=%-4d", q.Name, q.Pending, q.Queued, q.Running))
	}
	for _, v := range resp.Vertexes {
		alive := "down"
		if v.Alive {
			alive = "up"
		}
		c.UI.Output(fmt.Sprintf("vertex %-20s %s", v.Name, alive))
	}
	return 0
}
