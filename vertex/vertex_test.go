// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package vertex

import (
	"testing"

	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/resources"
	"github.com/stretchr/testify/require"
)

// S4: vertex admission exactness.
func TestConcretizeRequirement(t *testing.T) {
	provider := resources.NewProvider([]int{0, 1, 2, 3}, []int{0}, resources.Countables{"memory": 8 << 30}, nil)

	req := resources.Requirement{
		CPUs:       resources.Use(2),
		Mems:       resources.Auto(),
		Countables: resources.Countables{"memory": 4 << 30},
	}
	out := concretizeRequirement(req, provider)
	require.Equal(t, resources.NodesSelect, out.CPUs.Kind)
	require.Equal(t, 2, out.CPUs.Nodes.Size())
	require.Equal(t, resources.NodesSelect, out.Mems.Kind)
	require.ElementsMatch(t, []int{0}, out.Mems.Nodes.Slice())
}

func TestState_CurrentFree_Monotone(t *testing.T) {
	cfg := Config{Resources: resources.NewProvider([]int{0, 1, 2, 3}, []int{0}, resources.Countables{"memory": 100}, nil)}
	state := NewState(cfg, nil)

	free0 := state.CurrentFree()
	require.Equal(t, uint64(100), free0.Countables.Get("memory"))

	j := job.Configuration{
		UID: 1000, GID: 1000,
		Requirement: resources.Requirement{
			CPUs:       resources.Select(0, 1),
			Mems:       resources.Select(0),
			Countables: resources.Countables{"memory": 40},
		},
	}
	state.SetRunning("alice", "t1", j, 0)
	free1 := state.CurrentFree()
	require.Equal(t, uint64(60), free1.Countables.Get("memory"))
	require.True(t, free1.LessEq(free0))

	state.SetFinished("alice", "t1", j, 1)
	free2 := state.CurrentFree()
	require.Equal(t, uint64(100), free2.Countables.Get("memory"))
}

func TestState_JobsForUser_Filters(t *testing.T) {
	cfg := Config{Resources: resources.NewProvider([]int{0}, []int{0}, nil, nil)}
	state := NewState(cfg, nil)
	state.SetRunning("alice", "t1", job.Configuration{}, 0)
	state.SetRunning("bob", "t2", job.Configuration{}, 0)

	aliceJobs := state.JobsForUser("alice")
	require.Contains(t, aliceJobs, "t1")
	require.NotContains(t, aliceJobs, "t2")
}
