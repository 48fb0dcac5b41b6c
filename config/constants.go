// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// DefaultGossipFanout is the default number of peers sampled per gossip
// tick during fallback (spec §4.5: "default k = 3").
const DefaultGossipFanout = 3

// FallbackPeriodDivisor is the constant scaling factor between
// T_fallback and the periodic gossip tick period (spec §4.5: "T_fallback
// scaled by a small constant, e.g. T_fallback / 4").
const FallbackPeriodDivisor = 4

// MaxByzantineWeight bounds f as a fraction of n for the common
// deployment preset: f < n/3 tolerates up to one third adversarial
// witnesses, the usual BFT bound.
const MaxByzantineWeight = 1.0 / 3.0

// ByzantineBound returns the maximum tolerable number of faulty witnesses
// f for a group of size n under the standard f < n/3 bound.
func ByzantineBound(n int) int {
	f := (n - 1) / 3
	if f < 0 {
		f = 0
	}
	return f
}

// CanTolerateFailure reports whether threshold t exceeds the byzantine
// bound implied by n, i.e. t > f.
func CanTolerateFailure(t, n int) bool {
	return t > ByzantineBound(n)
}

// MinimalThreshold returns the smallest t that satisfies t > f for a
// witness set of size n under the standard byzantine bound.
func MinimalThreshold(n int) int {
	return ByzantineBound(n) + 1
}
