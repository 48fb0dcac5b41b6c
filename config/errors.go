// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

var (
	// ErrInvalidThreshold is returned when t is zero, negative, or greater
	// than n.
	ErrInvalidThreshold = errors.New("invalid threshold: require 0 < t <= n")

	// ErrInvalidWitnessCount is returned when n is zero or negative.
	ErrInvalidWitnessCount = errors.New("invalid witness count: require n > 0")

	// ErrThresholdBelowByzantineBound is returned when t does not exceed
	// the configured adversary bound f, i.e. t <= f.
	ErrThresholdBelowByzantineBound = errors.New("threshold does not exceed byzantine bound: require t > f")

	// ErrFallbackTimeoutTooLow is returned when T_fallback is non-positive.
	ErrFallbackTimeoutTooLow = errors.New("fallback timeout must be positive")

	// ErrInvalidGossipFanout is returned when gossip_k is non-positive.
	ErrInvalidGossipFanout = errors.New("gossip fanout must be positive")

	// ErrInvalidGossipPeriod is returned when gossip_period is non-positive.
	ErrInvalidGossipPeriod = errors.New("gossip period must be positive")

	// ErrInvalidGCRetention is returned when gc_retention is negative.
	ErrInvalidGCRetention = errors.New("gc retention must be non-negative")
)
