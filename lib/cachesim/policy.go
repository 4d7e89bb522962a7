// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cachesim

import (
	"fmt"
	"strings"
)

// ReplacementPolicy selects one of the nine page-replacement
// strategies. The integer codes are stable, and match the workload's
// "P <code>" policy-switch records exactly.
type ReplacementPolicy uint8

const (
	ClockProT1 ReplacementPolicy = iota // CLOCK_PRO_T1_B4_LOGS_B2
	ClockProT3                          // CLOCK_PRO_T3_B2_LOGS_B4
	ClockT1
	ClockT3
	FIFO
	LFU
	LFUARC
	LRU
	LRUARC
	numPolicies
)

// String implements fmt.Stringer.
func (p ReplacementPolicy) String() string {
	switch p {
	case ClockProT1:
		return "CLOCK_PRO_T1_B4_LOGS_B2"
	case ClockProT3:
		return "CLOCK_PRO_T3_B2_LOGS_B4"
	case ClockT1:
		return "CLOCK_T1"
	case ClockT3:
		return "CLOCK_T3"
	case FIFO:
		return "FIFO"
	case LFU:
		return "LFU"
	case LFUARC:
		return "LFU_ARC"
	case LRU:
		return "LRU"
	case LRUARC:
		return "LRU_ARC"
	default:
		return fmt.Sprintf("ReplacementPolicy(%d)", uint8(p))
	}
}

// ParsePolicyName parses a case-insensitive policy name, as accepted
// by the initial-policy startup parameter. It also accepts '-' as a
// separator, so "lru-arc" and "LRU_ARC" are both valid.
func ParsePolicyName(name string) (ReplacementPolicy, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for p := ReplacementPolicy(0); p < numPolicies; p++ {
		if p.String() == normalized {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// ParsePolicyCode validates a policy-switch record's numeric code,
// preserving the caller's original token is the caller's
// responsibility (see lib/workload.Record.RawToken).
func ParsePolicyCode(code int) (ReplacementPolicy, error) {
	if code < 0 || code >= int(numPolicies) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPolicyCode, code)
	}
	return ReplacementPolicy(code), nil
}
