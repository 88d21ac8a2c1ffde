// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package queue

import (
	"testing"

	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/resources"
	"github.com/stretchr/testify/require"
)

func testJob(uid, gid uint32) job.Configuration {
	return job.Configuration{
		UID:  uid,
		GID:  gid,
		Name: "test",
		Requirement: resources.Requirement{
			CPUs:       resources.Use(1),
			Mems:       resources.Auto(),
			Countables: resources.Countables{},
			Properties: resources.Properties{},
		},
	}
}

// S1: allow-list admission.
func TestQueue_Add_AllowList(t *testing.T) {
	q := New("default", Configuration{
		Users:  Allow(1000),
		Groups: Allow(1000),
	})

	_, err := q.Add(testJob(1000, 1000))
	require.NoError(t, err)

	_, err = q.Add(testJob(1001, 1000))
	require.ErrorIs(t, err, ErrAdmissionRefused)
}

func TestQueue_Add_PropertyConflict(t *testing.T) {
	q := New("default", Configuration{
		Users:      Allow(1000),
		Groups:     Allow(1000),
		Properties: resources.Properties{"pool": "gpu"},
	})
	j := testJob(1000, 1000)
	j.Requirement.Properties = resources.Properties{"pool": "cpu"}
	_, err := q.Add(j)
	require.ErrorIs(t, err, ErrAdmissionRefused)
}

func TestQueue_Add_MergesTagMixin(t *testing.T) {
	q := New("default", Configuration{
		Users:      Allow(1000),
		Groups:     Allow(1000),
		Properties: resources.Properties{"pool": "gpu"},
	})
	taskID, err := q.Add(testJob(1000, 1000))
	require.NoError(t, err)
	entry := q.pending[0]
	require.Equal(t, taskID, entry.TaskID)
	require.Equal(t, "gpu", entry.Job.Requirement.Properties["pool"])
}

func TestQueue_Remove_PermissionDenied(t *testing.T) {
	q := New("default", Configuration{Users: Allow(1000, 1001), Groups: Allow(1000)})
	taskID, err := q.Add(testJob(1000, 1000))
	require.NoError(t, err)

	err = q.Remove(taskID, 1001)
	require.ErrorIs(t, err, ErrPermissionDenied)

	err = q.Remove(taskID, 0) // superuser
	require.NoError(t, err)

	err = q.Remove(taskID, 0)
	require.ErrorIs(t, err, ErrNotFound)
}

// invariant 1: pending and running task ids are always disjoint.
func TestQueue_PendingRunningDisjoint(t *testing.T) {
	q := New("default", Configuration{Users: Allow(1000), Groups: Allow(1000)})
	taskID, err := q.Add(testJob(1000, 1000))
	require.NoError(t, err)
	q.RefreshJobs()

	entry, ok := q.removeTentative(taskID)
	require.True(t, ok)
	q.commitRunning("vertex-assigned-1", entry.Job)

	for _, p := range q.Pending() {
		require.NotEqual(t, "vertex-assigned-1", p.TaskID)
	}
	_, isRunning := q.running["vertex-assigned-1"]
	require.True(t, isRunning)
}

// S2: waiting-based priority ordering.
func TestGroup_TryTakeJob_PriorityOrdering(t *testing.T) {
	q := New("default", Configuration{
		Users:        Allow(1000),
		Groups:       Allow(1000),
		PriorityRule: []PriorityRule{WaitingRule(1.0)},
	})
	var clock int64 = 1000
	q.now = func() int64 { return clock }

	older, err := q.Add(testJob(1000, 1000))
	require.NoError(t, err)
	q.RefreshJobs() // older becomes queued at t=1000

	clock = 1010
	newer, err := q.Add(testJob(1000, 1000))
	require.NoError(t, err)
	q.RefreshJobs() // newer becomes queued at t=1010

	clock = 1020

	group := NewGroup(map[string]*Queue{"default": q})
	provider := resources.NewProvider([]int{0, 1, 2, 3}, []int{0}, nil, nil)
	claim, ok := group.TryTakeJob(provider, false)
	require.True(t, ok)
	require.Equal(t, older, claim.TaskID)
	require.NotEqual(t, newer, claim.TaskID)
}

// S3: two-phase commit races a concurrent delete.
func TestGroup_TrulyTakeJob_RacesDelete(t *testing.T) {
	q := New("default", Configuration{Users: Allow(1000), Groups: Allow(1000)})
	group := NewGroup(map[string]*Queue{"default": q})

	taskID, err := group.AddToQueue("default", testJob(1000, 1000))
	require.NoError(t, err)
	group.RefreshAll()

	provider := resources.NewProvider([]int{0, 1}, []int{0}, nil, nil)
	claim, ok := group.TryTakeJob(provider, false)
	require.True(t, ok)
	require.Equal(t, taskID, claim.TaskID)

	// admin deletes the entry before commit
	require.NoError(t, group.RemoveJob(taskID, 0))

	committed := group.TrulyTakeJob(claim.QueueName, claim.TaskID, "vertex-id-1", claim.Job)
	require.False(t, committed)

	running := q.Running()
	require.NotContains(t, running, "vertex-id-1")

	_, found := group.TryTakeJob(provider, false)
	require.False(t, found)
}

func TestGroup_RefreshRunning(t *testing.T) {
	q := New("default", Configuration{Users: Allow(1000), Groups: Allow(1000)})
	group := NewGroup(map[string]*Queue{"default": q})
	q.commitRunning("a", testJob(1000, 1000))
	q.commitRunning("b", testJob(1000, 1000))

	group.RefreshRunning(map[string]struct{}{"a": {}})

	running := q.Running()
	require.Contains(t, running, "a")
	require.NotContains(t, running, "b")
}

func TestQueue_FairnessCaps(t *testing.T) {
	max := 1
	q := New("default", Configuration{
		Users:      Allow(1000),
		Groups:     Allow(1000),
		UserLimit:  &AmountLimit{MaxQueue: max, MaxRunning: max},
	})
	_, err := q.Add(testJob(1000, 1000))
	require.NoError(t, err)
	_, err = q.Add(testJob(1000, 1000))
	require.NoError(t, err) // Add itself never enforces fairness, only RefreshJobs does

	q.RefreshJobs()
	queued := 0
	for _, e := range q.Pending() {
		if e.Queued() {
			queued++
		}
	}
	require.Equal(t, 1, queued, "only one entry should be promoted under the user queue cap")
}
