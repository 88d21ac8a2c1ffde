// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package queue

import "errors"

// Sentinel errors returned by Queue/QueueGroup operations. Callers
// branch on these with errors.Is, per spec §7's "surfaced verbatim"
// requirement for admission/removal failures.
var (
	ErrAdmissionRefused = errors.New("queue: admission refused")
	ErrPermissionDenied = errors.New("queue: permission denied")
	ErrNotFound         = errors.New("queue: not found")
	ErrNoSuchQueue      = errors.New("queue: no such queue")
)
