// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dispatcher

import (
	"time"

	"github.com/qihexiang/jobs-dispatcher/queue"
	"github.com/qihexiang/jobs-dispatcher/vertexclient"
)

// Config is the dispatcher's static configuration (spec §6's
// dispatcher YAML). Durations are expressed in microseconds on the
// wire, matching spec's `max_timeout`/`loop_interval`/`vertex_lost`.
type Config struct {
	Listen        string
	Vertexes      map[string]vertexclient.Config
	MaxTimeout    time.Duration
	LoopInterval  time.Duration
	VertexLost    time.Duration
	Queues        map[string]queue.Configuration
	Persistent    string
}
