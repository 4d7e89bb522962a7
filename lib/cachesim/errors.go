// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cachesim

// constError is a comparable, constant error value, following the
// pattern used throughout the retrieval pack's cache implementations
// (see _examples/djdv-go-clockpro/error.go) in preference to a
// package-level sentinel var.
type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrInvalidFrameCount is wrapped by NewEngine when Frames < 1.
	ErrInvalidFrameCount = constError("invalid buffer frame count")
	// ErrUnknownPolicy is wrapped by ParsePolicyName on an unrecognized name.
	ErrUnknownPolicy = constError("unknown replacement policy name")
	// ErrInvalidPolicyCode is wrapped by ParsePolicyCode when out of [0,8].
	ErrInvalidPolicyCode = constError("policy code out of range")
)
