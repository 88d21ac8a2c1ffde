// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package queue

import (
	"sort"
	"sync"

	"github.com/hashicorp/go-metrics"
	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/resources"
)

// Group owns every named queue and performs the cross-queue ranking
// and two-phase claim/commit dispatch described in spec §4.4. It is
// the "interior-mutable value behind a reader/writer lock" spec §9
// calls for: callers must never hold the lock across an RPC or other
// suspension point.
type Group struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

// NewGroup builds a Group from a set of already-constructed queues.
func NewGroup(queues map[string]*Queue) *Group {
	out := make(map[string]*Queue, len(queues))
	for name, q := range queues {
		out[name] = q
	}
	return &Group{queues: out}
}

// AddToQueue dispatches a submission to the named queue.
func (g *Group) AddToQueue(queueName string, j job.Configuration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	q, ok := g.queues[queueName]
	if !ok {
		return "", ErrNoSuchQueue
	}
	taskID, err := q.Add(j)
	if err != nil {
		metrics.IncrCounter([]string{"queue", "admission_refused"}, 1)
		return "", err
	}
	metrics.IncrCounter([]string{"queue", "admitted"}, 1)
	return taskID, nil
}

// RemoveJob scans every queue for taskID and delegates to Queue.Remove.
func (g *Group) RemoveJob(taskID string, uid uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, q := range g.queues {
		err := q.Remove(taskID, uid)
		if err == nil {
			return nil
		}
		if err == ErrPermissionDenied {
			return err
		}
		// ErrNotFound: keep scanning other queues.
	}
	return ErrNotFound
}

// RefreshAll promotes held entries to queued across every queue (spec
// §4.2's refresh_jobs, invoked once per queue after a fairness slot
// frees up, and safe to call speculatively on an unmodified queue).
func (g *Group) RefreshAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, q := range g.queues {
		q.RefreshJobs()
	}
}

// Claim is a tentative, not-yet-removed match between a queued entry
// and a resource offer, returned by TryTakeJob.
type Claim struct {
	TaskID    string
	Job       job.Configuration
	QueueName string
}

// TryTakeJob gathers every queue's JobsSubmittable, flattens and sorts
// by priority descending (ties broken by insertion order, older
// first), and returns the first entry the provider accepts. The match
// is tentative: nothing is removed from any queue (spec §4.4).
func (g *Group) TryTakeJob(provider resources.Provider, exclusiveMem bool) (Claim, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var all []Scored
	for _, q := range g.queues {
		all = append(all, q.JobsSubmittable()...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority > all[j].Priority
		}
		return all[i].order < all[j].order
	})

	for _, s := range all {
		accepts := provider.Acceptable(s.Entry.Job.Requirement)
		if exclusiveMem {
			accepts = provider.ExclusiveMemAcceptable(s.Entry.Job.Requirement)
		}
		if accepts {
			return Claim{TaskID: s.Entry.TaskID, Job: s.Entry.Job, QueueName: s.QueueName}, true
		}
	}
	return Claim{}, false
}

// TrulyTakeJob commits a tentative claim: after the caller has
// successfully submitted sentID's job to a vertex and received that
// vertex's own task id, remove sentID from the named queue's pending
// list and record receivedID as running there, then promote any held
// entries that the freed fairness slot now admits (spec §4.4). If
// sentID is no longer pending (e.g. deleted by the admin socket in the
// interim) this returns false and mutates nothing; the caller should
// log a warning and treat the remote submission as orphaned.
func (g *Group) TrulyTakeJob(queueName, sentID, receivedID string, j job.Configuration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	q, ok := g.queues[queueName]
	if !ok {
		return false
	}
	if _, ok := q.removeTentative(sentID); !ok {
		return false
	}
	q.commitRunning(receivedID, j)
	q.RefreshJobs()
	metrics.IncrCounter([]string{"queue", "dispatched"}, 1)
	return true
}

// RefreshRunning reduces every queue's running map to the intersection
// with runningIDs, treating absence as termination (spec §4.4,
// testable property 5), then promotes any held entries each queue's
// fairness caps now admit.
func (g *Group) RefreshRunning(runningIDs map[string]struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, q := range g.queues {
		q.refreshRunning(runningIDs)
		q.RefreshJobs()
	}
}

// Snapshot returns the pending entries of every queue, for
// persistence (spec §4.10 — running is intentionally excluded).
func (g *Group) Snapshot() map[string][]Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string][]Entry, len(g.queues))
	for name, q := range g.queues {
		out[name] = q.Pending()
	}
	return out
}

// Restore merges persisted pending entries into the queues that exist
// in the current configuration; entries for queues no longer
// configured are dropped (spec §4.10).
func (g *Group) Restore(snapshot map[string][]Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, entries := range snapshot {
		if q, ok := g.queues[name]; ok {
			q.RestorePending(entries)
		}
	}
}

// Queue returns the named queue, for read-only inspection (status
// reporting); ok is false if no such queue exists.
func (g *Group) Queue(name string) (*Queue, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	q, ok := g.queues[name]
	return q, ok
}

// Names returns every configured queue name.
func (g *Group) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.queues))
	for name := range g.queues {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
