// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dispatcher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-multierror"
	"github.com/qihexiang/jobs-dispatcher/queue"
	"github.com/qihexiang/jobs-dispatcher/vertexclient"
)

// ControlLoop periodically polls every configured vertex for free
// resources and currently-running task ids, driving the QueueGroup's
// two-phase dispatch (spec §4.5).
type ControlLoop struct {
	cfg     Config
	group   *queue.Group
	log     hclog.Logger
	clients map[string]*vertexclient.Client

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewControlLoop builds a ControlLoop, constructing one vertexclient
// per configured vertex.
func NewControlLoop(cfg Config, group *queue.Group, log hclog.Logger) *ControlLoop {
	clients := make(map[string]*vertexclient.Client, len(cfg.Vertexes))
	for name, vc := range cfg.Vertexes {
		clients[name] = vertexclient.New(vc)
	}
	return &ControlLoop{
		cfg:      cfg,
		group:    group,
		log:      log,
		clients:  clients,
		lastSeen: make(map[string]time.Time),
	}
}

// Run loops until ctx is canceled, sleeping LoopInterval between
// ticks (spec §4.5/§5).
func (c *ControlLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.LoopInterval)
	defer ticker.Stop()
	for {
		if err := c.Tick(ctx); err != nil {
			c.log.Warn("control loop tick reported errors", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one polling round across every configured vertex, in a
// stable (sorted) order, fanning out one goroutine per vertex — no
// goroutine holds the QueueGroup write lock across an RPC boundary
// (spec §4.5's ordering guarantee; spec §9's locking discipline).
func (c *ControlLoop) Tick(ctx context.Context) error {
	names := make([]string, 0, len(c.clients))
	for name := range c.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var result *multierror.Error

	for _, name := range names {
		if !c.alive(name) && c.hasLastSeen(name) {
			continue
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := c.tickVertex(ctx, name); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}(name)
	}
	wg.Wait()
	return result.ErrorOrNil()
}

func (c *ControlLoop) hasLastSeen(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lastSeen[name]
	return ok
}

// alive reports whether name's last successful /free poll is within
// VertexLost; a vertex that has never been seen is given its first
// chance (treated as alive) so it isn't skipped forever.
func (c *ControlLoop) alive(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen, ok := c.lastSeen[name]
	if !ok {
		return true
	}
	return time.Since(seen) <= c.cfg.VertexLost
}

func (c *ControlLoop) touch(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen[name] = time.Now()
}

// VertexStatuses reports every configured vertex's last-seen time and
// liveness, for the admin socket's Status response.
func (c *ControlLoop) VertexStatuses() []VertexStatus {
	names := make([]string, 0, len(c.clients))
	for name := range c.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]VertexStatus, 0, len(names))
	for _, name := range names {
		seen := c.lastSeen[name]
		out = append(out, VertexStatus{
			Name:     name,
			LastSeen: seen.Unix(),
			Alive:    seen.IsZero() || time.Since(seen) <= c.cfg.VertexLost,
		})
	}
	return out
}

// tickVertex executes this tick's free -> submit* -> jobs sequence for
// one vertex (spec §4.5).
func (c *ControlLoop) tickVertex(ctx context.Context, name string) error {
	client := c.clients[name]

	freeCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxTimeout)
	provider, err := client.Free(freeCtx)
	cancel()
	if err != nil {
		c.log.Warn("vertex free() failed", "vertex", name, "error", err)
		metrics.IncrCounter([]string{"dispatcher", "vertex_rpc_failure"}, 1)
		return err
	}
	c.touch(name)

	for {
		claim, ok := c.group.TryTakeJob(provider, false)
		if !ok {
			break
		}
		submitCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxTimeout)
		receivedID, err := client.SubmitJob(submitCtx, claim.TaskID, claim.Job)
		cancel()
		if err != nil {
			if errors.Is(err, vertexclient.ErrResourcesNotEnough) {
				c.log.Debug("vertex declined job, resources not enough", "vertex", name, "task_id", claim.TaskID)
			} else {
				c.log.Warn("vertex submit_job failed", "vertex", name, "task_id", claim.TaskID, "error", err)
			}
			// The tentative claim remains pending; it will be
			// reconsidered on the next tick (spec §7).
			break
		}
		if !c.group.TrulyTakeJob(claim.QueueName, claim.TaskID, receivedID, claim.Job) {
			c.log.Warn("dispatched job no longer claimed, now orphaned", "vertex", name, "task_id", claim.TaskID, "received_id", receivedID)
		}
		metrics.IncrCounter([]string{"dispatcher", "job_dispatched"}, 1)
	}

	jobsCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxTimeout)
	running, err := client.Jobs(jobsCtx)
	cancel()
	if err != nil {
		c.log.Warn("vertex jobs() failed", "vertex", name, "error", err)
		metrics.IncrCounter([]string{"dispatcher", "vertex_rpc_failure"}, 1)
		return err
	}
	ids := make(map[string]struct{}, len(running))
	for id := range running {
		ids[id] = struct{}{}
	}
	c.group.RefreshRunning(ids)
	return nil
}
