// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package resources

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

// NodeKind tags the variant held by a NodesRequirement.
type NodeKind int

const (
	// NodesAuto requires at least one node; any node(s) the provider
	// grants are acceptable.
	NodesAuto NodeKind = iota
	// NodesSelect requires exactly the indices in Nodes.
	NodesSelect
	// NodesUse requires any Count nodes.
	NodesUse
)

// NodesRequirement is a NUMA-like node-set demand: either an exact
// Select(set), a count-only Use(n), or Auto (at least one node). It is
// a pure value; all comparisons and transforms return new values.
type NodesRequirement struct {
	Kind  NodeKind
	Nodes *set.Set[int] // only meaningful when Kind == NodesSelect
	Count int           // only meaningful when Kind == NodesUse
}

// Auto constructs the Auto variant.
func Auto() NodesRequirement { return NodesRequirement{Kind: NodesAuto} }

// Use constructs the Use(n) variant. Use(0) is zero-valued: it is
// satisfied by any provider, including one with zero free nodes.
func Use(n int) NodesRequirement { return NodesRequirement{Kind: NodesUse, Count: n} }

// Select constructs the Select(set) variant.
func Select(nodes ...int) NodesRequirement {
	return NodesRequirement{Kind: NodesSelect, Nodes: set.From(nodes)}
}

// SelectSet constructs the Select(set) variant from an existing set.
func SelectSet(nodes *set.Set[int]) NodesRequirement {
	return NodesRequirement{Kind: NodesSelect, Nodes: nodes}
}

// IsZero reports whether the requirement is trivially satisfied by an
// empty provider: Select(∅) or Use(0). Auto is never zero — it demands
// at least one node.
func (n NodesRequirement) IsZero() bool {
	switch n.Kind {
	case NodesSelect:
		return n.Nodes == nil || n.Nodes.Size() == 0
	case NodesUse:
		return n.Count == 0
	default:
		return false
	}
}

// ToSet returns the node set for a Select requirement, or nil for
// Use/Auto — mirrors spec's "to_set" for Select(S) -> S.
func (n NodesRequirement) ToSet() *set.Set[int] {
	if n.Kind != NodesSelect {
		return nil
	}
	return n.Nodes
}

// LessEqSelect implements the partial order "requirement <= provider
// node set", i.e. whether n can be satisfied by the node set t:
//
//	Auto        <= t  iff  t is non-empty
//	Select(S)   <= t  iff  S ⊆ t
//	Use(n)      <= t  iff  n <= |t|
func (n NodesRequirement) LessEqSelect(t *set.Set[int]) bool {
	switch n.Kind {
	case NodesAuto:
		return t != nil && t.Size() > 0
	case NodesSelect:
		if n.Nodes == nil || n.Nodes.Size() == 0 {
			return true
		}
		return t != nil && n.Nodes.Subset(t)
	case NodesUse:
		size := 0
		if t != nil {
			size = t.Size()
		}
		return n.Count <= size
	default:
		return false
	}
}

// LessEqUse implements the Use(n) <= Use(m) iff n <= m comparison used
// when one requirement is compared directly against another Use
// requirement rather than a concrete provider set (testable property 3).
func (n NodesRequirement) LessEqUse(m int) bool {
	if n.Kind != NodesUse {
		return false
	}
	return n.Count <= m
}

// Concretize resolves Use(n)/Auto against a concrete free node set,
// returning a Select(...) requirement picking the first n (or all)
// free nodes in ascending order. Select requirements pass through
// unchanged. Used by the vertex on job admission (spec §4.7).
func (n NodesRequirement) Concretize(free *set.Set[int]) NodesRequirement {
	switch n.Kind {
	case NodesSelect:
		return n
	case NodesAuto:
		return SelectSet(free.Copy())
	case NodesUse:
		sorted := free.Slice()
		sort.Ints(sorted)
		if n.Count < len(sorted) {
			sorted = sorted[:n.Count]
		}
		return Select(sorted...)
	default:
		return n
	}
}

// String renders a Select requirement as ascending comma-separated
// node indices, the form cpuset.cpus/cpuset.mems expect. Non-Select
// variants render as empty string.
func (n NodesRequirement) String() string {
	if n.Kind != NodesSelect || n.Nodes == nil {
		return ""
	}
	sorted := n.Nodes.Slice()
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// wireNodesRequirement is the stable JSON form of NodesRequirement: a
// tagged union discriminated by "kind".
type wireNodesRequirement struct {
	Kind  string `json:"kind"`
	Nodes []int  `json:"nodes,omitempty"`
	Count int    `json:"count,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (n NodesRequirement) MarshalJSON() ([]byte, error) {
	w := wireNodesRequirement{}
	switch n.Kind {
	case NodesAuto:
		w.Kind = "auto"
	case NodesSelect:
		w.Kind = "select"
		if n.Nodes != nil {
			w.Nodes = n.Nodes.Slice()
			sort.Ints(w.Nodes)
		}
	case NodesUse:
		w.Kind = "use"
		w.Count = n.Count
	default:
		return nil, fmt.Errorf("resources: unknown NodesRequirement kind %d", n.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NodesRequirement) UnmarshalJSON(data []byte) error {
	var w wireNodesRequirement
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "auto":
		*n = Auto()
	case "select":
		*n = Select(w.Nodes...)
	case "use":
		*n = Use(w.Count)
	default:
		return fmt.Errorf("resources: unknown NodesRequirement kind %q", w.Kind)
	}
	return nil
}
