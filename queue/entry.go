// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package queue implements per-queue admission, fairness, and priority
// scoring, and cross-queue two-phase claim/commit dispatch (QueueGroup).
package queue

import "github.com/qihexiang/jobs-dispatcher/job"

// Entry is one pending job in a queue. AdmittedAt is nil for a held
// entry (fairness slot not yet promoted) and set to the unix-seconds
// timestamp at which the entry became queued and eligible for
// priority ranking.
type Entry struct {
	TaskID     string               `json:"task_id"`
	Job        job.Configuration    `json:"job"`
	AdmittedAt *int64               `json:"admitted_at,omitempty"`
}

// Queued reports whether the entry has been promoted past its held
// state.
func (e Entry) Queued() bool { return e.AdmittedAt != nil }

// Waited returns the seconds elapsed since AdmittedAt, or 0 if the
// entry is still held.
func (e Entry) Waited(now int64) int64 {
	if e.AdmittedAt == nil {
		return 0
	}
	return now - *e.AdmittedAt
}

// Scored pairs a queue entry with its current priority and owning
// queue name — the shape QueueGroup.TryTakeJob ranks across queues.
type Scored struct {
	Entry     Entry
	Priority  float64
	QueueName string
	order     int // insertion order, for stable tie-breaking
}
