// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package queue

import "github.com/qihexiang/jobs-dispatcher/resources"

// IDControlKind tags the variant held by an IDControl.
type IDControlKind int

const (
	IDAllow IDControlKind = iota
	IDDeny
)

// IDControl is an allow- or deny-list of uids/gids.
type IDControl struct {
	Kind IDControlKind
	IDs  map[uint32]struct{}
}

// Allow builds an allow-list control.
func Allow(ids ...uint32) IDControl { return IDControl{Kind: IDAllow, IDs: toSet(ids)} }

// Deny builds a deny-list control.
func Deny(ids ...uint32) IDControl { return IDControl{Kind: IDDeny, IDs: toSet(ids)} }

func toSet(ids []uint32) map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// AllowsID reports whether id passes this control.
func (c IDControl) AllowsID(id uint32) bool {
	_, present := c.IDs[id]
	if c.Kind == IDAllow {
		return present
	}
	return !present
}

// AmountLimit caps how many entries of some scope (global/user/group)
// may be running or queued at once. A nil *AmountLimit means
// unlimited.
type AmountLimit struct {
	MaxRunning int `json:"max_running"`
	MaxQueue   int `json:"max_queue"`
}

// PriorityRuleKind tags the variant held by a PriorityRule.
type PriorityRuleKind int

const (
	RuleProperty PriorityRuleKind = iota
	RuleCountable
	RuleCpuset
	RuleWaiting
)

// PriorityRule is one term summed to compute a queued entry's
// priority (spec §4.3).
type PriorityRule struct {
	Kind PriorityRuleKind

	// RuleProperty
	PropertyKey   string
	PropertyValue string
	Offset        float64

	// RuleCountable
	CountableKey string
	Ratio        float64

	// RuleCpuset
	SelectFactor float64
	UseFactor    float64
	AutoOffset   float64

	// RuleWaiting
	Factor float64
}

// PropertyRule builds a RuleProperty term: +offset if
// requirement.properties[k] == v.
func PropertyRule(k, v string, offset float64) PriorityRule {
	return PriorityRule{Kind: RuleProperty, PropertyKey: k, PropertyValue: v, Offset: offset}
}

// CountableRule builds a RuleCountable term: +offset +
// requirement.countables[k]*ratio.
func CountableRule(k string, offset, ratio float64) PriorityRule {
	return PriorityRule{Kind: RuleCountable, CountableKey: k, Offset: offset, Ratio: ratio}
}

// CpusetRule builds a RuleCpuset term.
func CpusetRule(selectFactor, useFactor, autoOffset float64) PriorityRule {
	return PriorityRule{Kind: RuleCpuset, SelectFactor: selectFactor, UseFactor: useFactor, AutoOffset: autoOffset}
}

// WaitingRule builds a RuleWaiting term: +(now-admitted_at)*factor.
func WaitingRule(factor float64) PriorityRule {
	return PriorityRule{Kind: RuleWaiting, Factor: factor}
}

// Configuration is a queue's admission policy, fairness caps, and
// priority formula (spec's QueueConfiguration).
type Configuration struct {
	PriorityRule []PriorityRule
	Users        IDControl
	Groups       IDControl
	Properties   resources.Properties
	GlobalLimit  *AmountLimit
	UserLimit    *AmountLimit
	GroupLimit   *AmountLimit
}

// Score sums this configuration's priority rules against a
// requirement and waited-seconds duration (spec §4.3). It is a pure
// function of (rules, requirement, waited) per testable property 4.
func (c Configuration) Score(r resources.Requirement, waited int64) float64 {
	var priority float64
	for _, rule := range c.PriorityRule {
		switch rule.Kind {
		case RuleProperty:
			if r.Properties.Matches(rule.PropertyKey, rule.PropertyValue) {
				priority += rule.Offset
			}
		case RuleCountable:
			priority += rule.Offset + float64(r.Countables.Get(rule.CountableKey))*rule.Ratio
		case RuleCpuset:
			switch r.CPUs.Kind {
			case resources.NodesSelect:
				size := 0
				if r.CPUs.Nodes != nil {
					size = r.CPUs.Nodes.Size()
				}
				priority += float64(size) * rule.SelectFactor
			case resources.NodesUse:
				priority += float64(r.CPUs.Count) * rule.UseFactor
			case resources.NodesAuto:
				priority += rule.AutoOffset
			}
		case RuleWaiting:
			priority += float64(waited) * rule.Factor
		}
	}
	return priority
}
