// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package vertex

import "github.com/qihexiang/jobs-dispatcher/resources"

// HTTPConfig binds the vertex's control-plane listener.
type HTTPConfig struct {
	IP   string
	Port int
}

// Config is a vertex's static configuration (spec §6's vertex YAML).
type Config struct {
	HTTP      HTTPConfig
	Basic     map[string]string // username -> password; empty = auth disabled
	Resources resources.Provider
	History   string // path to the job-status history file
}
