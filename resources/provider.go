// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package resources

import (
	"encoding/json"

	"github.com/hashicorp/go-set/v3"
)

// Provider is the resources a vertex actually offers: concrete cpu and
// memory node sets plus countables and properties. Unlike
// Requirement's NodesRequirement, a provider's node sets are
// always fully concrete.
type Provider struct {
	CPUs        *set.Set[int] `json:"cpus"`
	Mems        *set.Set[int] `json:"mems"`
	Countables  Countables    `json:"countables"`
	Properties  Properties    `json:"properties"`
}

// NewProvider builds a Provider from plain slices/maps, convenient for
// config decoding and tests.
func NewProvider(cpus, mems []int, countables Countables, properties Properties) Provider {
	if countables == nil {
		countables = Countables{}
	}
	if properties == nil {
		properties = Properties{}
	}
	return Provider{
		CPUs:       set.From(cpus),
		Mems:       set.From(mems),
		Countables: countables,
		Properties: properties,
	}
}

// Acceptable implements the core admission predicate from spec §3:
//
//	P.acceptable(R) iff R.cpus <= Select(P.cpus)
//	                 && R.countables <= P.countables
//	                 && R.properties <= P.properties
func (p Provider) Acceptable(r Requirement) bool {
	return r.CPUs.LessEqSelect(p.CPUs) &&
		r.Countables.LessEq(p.Countables) &&
		r.Properties.LessEq(p.Properties)
}

// ExclusiveMemAcceptable additionally requires the memory node set to
// be satisfiable, used by callers that need NUMA-exclusive memory
// placement (spec §3).
func (p Provider) ExclusiveMemAcceptable(r Requirement) bool {
	return r.Mems.LessEqSelect(p.Mems) && p.Acceptable(r)
}

// Sub returns a new Provider with the given requirement's claim on
// cpus, mems, and countables removed. Properties are never subtracted
// (spec §4.8). cpus/mems are subtracted as concrete sets — the caller
// is expected to have already concretized any Use/Auto requirement
// (i.e. this is called with a running job's already-resolved
// requirement, never a pending Use/Auto one).
func (p Provider) Sub(r Requirement) Provider {
	out := Provider{
		CPUs:       p.CPUs.Copy(),
		Mems:       p.Mems.Copy(),
		Countables: p.Countables.Sub(r.Countables),
		Properties: p.Properties,
	}
	if cpus := r.CPUs.ToSet(); cpus != nil {
		out.CPUs = out.CPUs.Difference(cpus)
	}
	if mems := r.Mems.ToSet(); mems != nil {
		out.Mems = out.Mems.Difference(mems)
	}
	return out
}

// Clone returns a deep-enough copy of p safe to mutate independently.
func (p Provider) Clone() Provider {
	return Provider{
		CPUs:       p.CPUs.Copy(),
		Mems:       p.Mems.Copy(),
		Countables: p.Countables.Clone(),
		Properties: p.Properties.Clone(),
	}
}

// LessEq is a componentwise partial order over providers, used by
// testable property 7 (monotonicity of TryTakeJob in the provider).
func (p Provider) LessEq(other Provider) bool {
	if p.CPUs.Size() > 0 && !p.CPUs.Subset(other.CPUs) {
		return false
	}
	if p.Mems.Size() > 0 && !p.Mems.Subset(other.Mems) {
		return false
	}
	for k, v := range p.Countables {
		if v > other.Countables.Get(k) {
			return false
		}
	}
	return true
}

type wireProvider struct {
	CPUs       []int      `json:"cpus"`
	Mems       []int      `json:"mems"`
	Countables Countables `json:"countables"`
	Properties Properties `json:"properties"`
}

// MarshalJSON gives Provider a stable JSON form with cpus/mems as
// plain integer arrays (the wire format vertex's /free endpoint
// returns, per spec §4.7).
func (p Provider) MarshalJSON() ([]byte, error) {
	w := wireProvider{Countables: p.Countables, Properties: p.Properties}
	if p.CPUs != nil {
		w.CPUs = p.CPUs.Slice()
	}
	if p.Mems != nil {
		w.Mems = p.Mems.Slice()
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Provider) UnmarshalJSON(data []byte) error {
	var w wireProvider
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.CPUs = set.From(w.CPUs)
	p.Mems = set.From(w.Mems)
	p.Countables = w.Countables
	p.Properties = w.Properties
	if p.Countables == nil {
		p.Countables = Countables{}
	}
	if p.Properties == nil {
		p.Properties = Properties{}
	}
	return nil
}
