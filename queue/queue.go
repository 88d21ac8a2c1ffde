// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package queue

import (
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/qihexiang/jobs-dispatcher/job"
)

// Queue holds one named admission/ordering policy with its pending
// (held + queued) entries and its running jobs. Task ids are unique
// within a queue; running tracks only jobs successfully dispatched to
// a vertex; pending never contains a task id also present in running
// (invariant 1).
type Queue struct {
	Name          string
	Configuration Configuration

	pending []Entry
	running map[string]job.Configuration

	// now is the clock used to stamp AdmittedAt and compute waited
	// durations; overridable in tests, defaulting to wall-clock.
	now func() int64
}

// New constructs an empty Queue.
func New(name string, cfg Configuration) *Queue {
	return &Queue{
		Name:          name,
		Configuration: cfg,
		running:       make(map[string]job.Configuration),
		now:           func() int64 { return time.Now().Unix() },
	}
}

// Add admits a job per spec §4.2: accepted iff the uid/gid pass the
// queue's IDControl and the job's requirement properties don't
// conflict with the queue's tag-mixin. On success the queue's
// properties are merged into the job's requirement and a fresh held
// entry (AdmittedAt == nil) is appended.
func (q *Queue) Add(j job.Configuration) (string, error) {
	if !q.Configuration.Users.AllowsID(j.UID) || !q.Configuration.Groups.AllowsID(j.GID) {
		return "", ErrAdmissionRefused
	}
	if j.Requirement.Properties.Conflict(q.Configuration.Properties) {
		return "", ErrAdmissionRefused
	}
	taskID, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}
	merged := j.WithRequirement(j.Requirement.WithProperties(q.Configuration.Properties))
	q.pending = append(q.pending, Entry{TaskID: taskID, Job: merged})
	return taskID, nil
}

// Remove deletes a pending entry by task id, per spec §4.2: the
// superuser may remove any entry; otherwise only the entry's own
// owner may. Removing a running entry is not supported here and
// returns ErrNotFound, matching spec's explicit carve-out.
func (q *Queue) Remove(taskID string, requestingUID uint32) error {
	for i, e := range q.pending {
		if e.TaskID != taskID {
			continue
		}
		if requestingUID != 0 && e.Job.UID != requestingUID {
			return ErrPermissionDenied
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		return nil
	}
	return ErrNotFound
}

// RefreshJobs promotes held entries (AdmittedAt == nil) to queued,
// stamping AdmittedAt with the current time, as long as doing so
// keeps the owner's/group's fairness caps satisfied (spec §4.2).
// Promotion proceeds in pending order so earlier submissions are
// favored when only some held entries fit under the cap.
func (q *Queue) RefreshJobs() {
	now := q.now()
	for i := range q.pending {
		if q.pending[i].Queued() {
			continue
		}
		if q.queueable(q.pending[i].Job.UID, q.pending[i].Job.GID) {
			t := now
			q.pending[i].AdmittedAt = &t
		}
	}
}

// queueable reports whether an entry owned by (uid, gid) may be
// promoted to queued without violating the global/user/group queue
// depth caps, counting only already-queued entries (spec §4.2).
func (q *Queue) queueable(uid, gid uint32) bool {
	if q.queueFull() || q.queueFullUser(uid) || q.queueFullGroup(gid) {
		return false
	}
	return true
}

func (q *Queue) queueFull() bool {
	return overLimit(q.Configuration.GlobalLimit, q.countQueued(func(Entry) bool { return true }))
}

func (q *Queue) queueFullUser(uid uint32) bool {
	return overLimit(q.Configuration.UserLimit, q.countQueued(func(e Entry) bool { return e.Job.UID == uid }))
}

func (q *Queue) queueFullGroup(gid uint32) bool {
	return overLimit(q.Configuration.GroupLimit, q.countQueued(func(e Entry) bool { return e.Job.GID == gid }))
}

// runningFull* mirror queueFull* against the running map (spec §4.2).
func (q *Queue) runningFull() bool {
	return overLimitRunning(q.Configuration.GlobalLimit, q.countRunning(func(job.Configuration) bool { return true }))
}

func (q *Queue) runningFullUser(uid uint32) bool {
	return overLimitRunning(q.Configuration.UserLimit, q.countRunning(func(j job.Configuration) bool { return j.UID == uid }))
}

func (q *Queue) runningFullGroup(gid uint32) bool {
	return overLimitRunning(q.Configuration.GroupLimit, q.countRunning(func(j job.Configuration) bool { return j.GID == gid }))
}

func overLimit(limit *AmountLimit, count int) bool {
	if limit == nil {
		return false
	}
	return count >= limit.MaxQueue
}

func overLimitRunning(limit *AmountLimit, count int) bool {
	if limit == nil {
		return false
	}
	return count >= limit.MaxRunning
}

func (q *Queue) countQueued(pred func(Entry) bool) int {
	n := 0
	for _, e := range q.pending {
		if e.Queued() && pred(e) {
			n++
		}
	}
	return n
}

func (q *Queue) countRunning(pred func(job.Configuration) bool) int {
	n := 0
	for _, j := range q.running {
		if pred(j) {
			n++
		}
	}
	return n
}

// JobsSubmittable returns every queued entry whose owner/group is not
// presently at the running cap — i.e. entries that, if dispatched now,
// would not violate fairness — each annotated with its current
// priority (spec §4.2). Priority is never cached: it is recomputed
// here from the queue's configuration and the entry's current wait.
func (q *Queue) JobsSubmittable() []Scored {
	now := q.now()
	var out []Scored
	for i, e := range q.pending {
		if !e.Queued() {
			continue
		}
		if q.runningFull() || q.runningFullUser(e.Job.UID) || q.runningFullGroup(e.Job.GID) {
			continue
		}
		out = append(out, Scored{
			Entry:     e,
			Priority:  q.Configuration.Score(e.Job.Requirement, e.Waited(now)),
			QueueName: q.Name,
			order:     i,
		})
	}
	return out
}

// Pending returns a snapshot of the pending slice.
func (q *Queue) Pending() []Entry {
	return append([]Entry(nil), q.pending...)
}

// Running returns a snapshot of the running map.
func (q *Queue) Running() map[string]job.Configuration {
	out := make(map[string]job.Configuration, len(q.running))
	for k, v := range q.running {
		out[k] = v
	}
	return out
}

// RestorePending replaces the pending slice wholesale — used when
// loading persisted state at startup (spec §4.10). Entries for a
// queue that no longer exists are never handed here; the caller
// filters by queue name before calling.
func (q *Queue) RestorePending(entries []Entry) {
	q.pending = append([]Entry(nil), entries...)
}

// removeTentative deletes a pending entry by task id unconditionally
// (no permission check) — used internally by Group.TrulyTakeJob
// once a dispatch has been confirmed.
func (q *Queue) removeTentative(taskID string) (Entry, bool) {
	for i, e := range q.pending {
		if e.TaskID == taskID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return e, true
		}
	}
	return Entry{}, false
}

// commitRunning records j as running under receivedID.
func (q *Queue) commitRunning(receivedID string, j job.Configuration) {
	q.running[receivedID] = j
}

// refreshRunning reduces running to its intersection with ids
// (spec §4.4's refresh_running, testable property 5).
func (q *Queue) refreshRunning(ids map[string]struct{}) {
	for id := range q.running {
		if _, ok := ids[id]; !ok {
			delete(q.running, id)
		}
	}
}
