// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package command

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/go-hclog"

	"github.com/qihexiang/jobs-dispatcher/vertex"
)

// VertexCommand runs a vertex's HTTP control plane (spec §6's
// `vertex --config-path PATH`).
type VertexCommand struct {
	UI cli.Ui
}

func (c *VertexCommand) Help() string {
	return "Usage: fleet vertex [--config-path PATH]\n\n" +
		"  Runs the vertex HTTP control plane.\n"
}

func (c *VertexCommand) Synopsis() string {
	return "Run a vertex's HTTP control plane"
}

func (c *VertexCommand) Run(args []string) int {
	var configPath string
	flags := flag.NewFlagSet("vertex", flag.ContinueOnError)
	flags.StringVar(&configPath, "config-path", "", "path to vertex.yml")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	log := hclog.New(&hclog.LoggerOptions{Name: "vertex", Level: hclog.Info})

	cfg, err := LoadVertexConfig(configPath)
	if err != nil {
		c.UI.Error(fmt.Sprintf("failed to load vertex config: %v", err))
		return 1
	}

	history := vertex.NewHistoryStore(cfg.History, log.Named("history"))
	state := vertex.NewState(cfg, history.Load())
	server := vertex.NewServer(state, log.Named("http"))

	stop := vertex.PersistHistoryPeriodically(state, history, log.Named("history"))
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.IP, cfg.HTTP.Port)
	log.Info("vertex listening", "addr", addr)
	if err := http.ListenAndServe(addr, server); err != nil {
		c.UI.Error(fmt.Sprintf("vertex http server stopped: %v", err))
		return 1
	}
	return 0
}
