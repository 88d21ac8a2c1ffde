// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package vertex

import (
	"github.com/hashicorp/go-set/v3"
	"github.com/qihexiang/jobs-dispatcher/resources"
)

// concretizeRequirement resolves a submitted job's Use/Auto cpu and
// mem requirements against the vertex's currently free node sets,
// picking the first n (or all) free nodes in ascending order
// (spec §4.7). Select requirements pass through unchanged. A vertex
// configured with no mem nodes at all still offers an implicit node
// 0, matching the original implementation's fallback.
func concretizeRequirement(r resources.Requirement, free resources.Provider) resources.Requirement {
	out := r
	out.CPUs = r.CPUs.Concretize(free.CPUs)
	mems := free.Mems
	if mems == nil || mems.Size() == 0 {
		mems = set.From([]int{0})
	}
	out.Mems = r.Mems.Concretize(mems)
	return out
}

// CurrentFree returns the provider from configuration with every
// running job's requirement subtracted (spec §4.8). It is recomputed
// fresh on every call — never cached — and is monotonic: it can only
// shrink as running jobs are added and only grow as they are removed
// (testable property 8).
func (s *State) CurrentFree() resources.Provider {
	free := s.Configuration.Resources.Clone()
	for _, req := range s.RunningRequirements() {
		free = free.Sub(req)
	}
	return free
}
