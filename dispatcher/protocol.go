// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package dispatcher implements the central coordinator: the admin
// Unix socket, the per-tick control loop that matches queued jobs
// against vertex resource offers, and pending-queue persistence.
package dispatcher

import "github.com/qihexiang/jobs-dispatcher/job"

// RequestKind tags the variant held by a Request.
type RequestKind string

const (
	RequestSubmitJob RequestKind = "submit_job"
	RequestDeleteJob RequestKind = "delete_job"
	RequestStatus    RequestKind = "status"
)

// Request is one JSON object read from an admin-socket connection
// (spec §4.6), a tagged union discriminated by Kind.
type Request struct {
	Kind  RequestKind       `json:"kind"`
	Queue string            `json:"queue,omitempty"` // RequestSubmitJob
	Job   job.Configuration `json:"job,omitempty"`    // RequestSubmitJob
	TaskID string           `json:"task_id,omitempty"` // RequestDeleteJob
}

// ResponseKind tags the variant held by a Response.
type ResponseKind string

const (
	ResponseInvalidRequest ResponseKind = "invalid_request"
	ResponseSubmitSuccess  ResponseKind = "submit_success"
	ResponseSubmitFailed   ResponseKind = "submit_failed"
	ResponseDeleteSuccess  ResponseKind = "delete_success"
	ResponseDeleteFailed   ResponseKind = "delete_failed"
	ResponseStatus         ResponseKind = "status"
)

// DeleteFailReason is the payload of a ResponseDeleteFailed.
type DeleteFailReason string

const (
	ReasonPermissionDenied DeleteFailReason = "permission_denied"
	ReasonNotFound         DeleteFailReason = "not_found"
)

// QueueStatus summarizes one queue for the Status response.
type QueueStatus struct {
	Name    string `json:"name"`
	Pending int    `json:"pending"`
	Queued  int    `json:"queued"`
	Running int    `json:"running"`
}

// VertexStatus summarizes one vertex's liveness for the Status response.
type VertexStatus struct {
	Name     string `json:"name"`
	LastSeen int64  `json:"last_seen"`
	Alive    bool   `json:"alive"`
}

// Response is the single JSON object written back before the admin
// socket connection is closed (spec §4.6).
type Response struct {
	Kind    ResponseKind      `json:"kind"`
	TaskID  string            `json:"task_id,omitempty"`  // ResponseSubmitSuccess
	Reason  DeleteFailReason  `json:"reason,omitempty"`   // ResponseDeleteFailed
	Queues  []QueueStatus     `json:"queues,omitempty"`   // ResponseStatus
	Vertexes []VertexStatus   `json:"vertexes,omitempty"` // ResponseStatus
}
