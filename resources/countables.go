// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package resources implements the value-typed resource algebra that
// underpins admission and eligibility matching: countable resource
// vectors, string-valued properties, and NUMA-like node-set
// requirements, all compared by a genuine (non-total) partial order.
package resources

// Countables is a named non-negative integer resource vector, e.g.
// {"memory": 8589934592, "gpus": 2}. A missing key reads as zero.
// Countables is copied by value; mutation methods return a new map.
type Countables map[string]uint64

// Get returns the value for k, or 0 if k is absent.
func (c Countables) Get(k string) uint64 {
	return c[k]
}

// With returns a copy of c with k set to v.
func (c Countables) With(k string, v uint64) Countables {
	out := c.Clone()
	out[k] = v
	return out
}

// Without returns a copy of c with k removed.
func (c Countables) Without(k string) Countables {
	out := c.Clone()
	delete(out, k)
	return out
}

// Clone returns a shallow copy of c, never nil.
func (c Countables) Clone() Countables {
	out := make(Countables, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Enough reports whether c has at least usage of k.
func (c Countables) Enough(k string, usage uint64) bool {
	return c.Get(k) >= usage
}

// LessEq implements the partial order: a <= b iff every key in a has a
// value no greater than b's value for that key (a key missing from b
// reads as zero).
func (c Countables) LessEq(other Countables) bool {
	for k, v := range c {
		if v > other.Get(k) {
			return false
		}
	}
	return true
}

// Sub returns c with each key in other subtracted, floored at zero —
// used to compute a vertex's free countables from its configured
// total and the countables claimed by every running job.
func (c Countables) Sub(other Countables) Countables {
	out := c.Clone()
	for k, v := range other {
		cur := out.Get(k)
		if cur < v {
			out[k] = 0
		} else {
			out[k] = cur - v
		}
	}
	return out
}

// Merge returns a copy of c with every key from patch overwritten (or
// added).
func (c Countables) Merge(patch Countables) Countables {
	out := c.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}
