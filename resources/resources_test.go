// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package resources

import (
	"testing"

	"github.com/hashicorp/go-set/v3"
	"github.com/stretchr/testify/require"
)

func TestNodesRequirement_LessEqSelect(t *testing.T) {
	cases := []struct {
		name string
		req  NodesRequirement
		t    []int
		want bool
	}{
		{"auto against non-empty", Auto(), []int{0}, true},
		{"auto against empty", Auto(), nil, false},
		{"select subset", Select(0, 1), []int{0, 1, 2}, true},
		{"select not subset", Select(0, 5), []int{0, 1, 2}, false},
		{"select empty is zero", Select(), []int{}, true},
		{"use within count", Use(2), []int{0, 1, 2}, true},
		{"use beyond count", Use(4), []int{0, 1, 2}, false},
		{"use zero is zero", Use(0), nil, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.req.LessEqSelect(set.From(c.t)))
		})
	}
}

func TestProvider_Acceptable(t *testing.T) {
	provider := NewProvider([]int{0, 1, 2, 3}, []int{0}, Countables{"memory": 8 << 30}, Properties{"pool": "a"})

	accepted := Requirement{
		CPUs:       Use(2),
		Mems:       Auto(),
		Countables: Countables{"memory": 4 << 30},
		Properties: Properties{"pool": "a"},
	}
	require.True(t, provider.Acceptable(accepted))

	tooMuchMemory := accepted
	tooMuchMemory.Countables = Countables{"memory": 16 << 30}
	require.False(t, provider.Acceptable(tooMuchMemory))

	wrongProperty := accepted
	wrongProperty.Properties = Properties{"pool": "b"}
	require.False(t, provider.Acceptable(wrongProperty))
}

func TestProvider_Acceptable_Monotone(t *testing.T) {
	// testable property 2: deleting a countable key or shrinking a
	// Select cpu set only ever widens acceptance.
	provider := NewProvider([]int{0, 1}, []int{0}, Countables{"memory": 100}, nil)
	wide := Requirement{CPUs: Select(0), Mems: Auto(), Countables: Countables{"memory": 50, "gpus": 0}}
	require.True(t, provider.Acceptable(wide))

	narrower := wide
	narrower.Countables = narrower.Countables.Without("gpus")
	require.True(t, provider.Acceptable(narrower))
}

func TestProvider_Sub(t *testing.T) {
	provider := NewProvider([]int{0, 1, 2, 3}, []int{0, 1}, Countables{"memory": 100}, nil)
	running := Requirement{
		CPUs:       Select(0, 1),
		Mems:       Select(0),
		Countables: Countables{"memory": 40},
	}
	free := provider.Sub(running)
	require.ElementsMatch(t, []int{2, 3}, free.CPUs.Slice())
	require.ElementsMatch(t, []int{1}, free.Mems.Slice())
	require.Equal(t, uint64(60), free.Countables.Get("memory"))

	// never goes negative
	free2 := free.Sub(Requirement{Countables: Countables{"memory": 1000}})
	require.Equal(t, uint64(0), free2.Countables.Get("memory"))
}

func TestProperties_Conflict(t *testing.T) {
	a := Properties{"pool": "gpu"}
	b := Properties{"pool": "gpu", "rack": "a1"}
	require.False(t, a.Conflict(b))

	c := Properties{"pool": "cpu"}
	require.True(t, a.Conflict(c))
}

func TestNodesRequirement_JSONRoundTrip(t *testing.T) {
	for _, n := range []NodesRequirement{Auto(), Use(3), Select(2, 0, 1)} {
		data, err := n.MarshalJSON()
		require.NoError(t, err)
		var out NodesRequirement
		require.NoError(t, out.UnmarshalJSON(data))
		require.Equal(t, n.Kind, out.Kind)
		if n.Kind == NodesSelect {
			require.ElementsMatch(t, n.Nodes.Slice(), out.Nodes.Slice())
		}
	}
}

func TestNodesRequirement_String(t *testing.T) {
	require.Equal(t, "0,1,2", Select(2, 0, 1).String())
	require.Equal(t, "", Auto().String())
}
