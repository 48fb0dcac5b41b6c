// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config carries the tunables of the Aura consensus core (spec
// §6.4): the threshold/witness-count pair, the fallback timeout, the
// gossip fanout and period, and the garbage-collection retention window.
package config

import "time"

// Config holds the tunables for one deployment of the consensus core.
// Every ConsensusInstance is created against a single Config; the witness
// set size and threshold are fixed for the lifetime of an instance (spec
// §1 Non-goals: "no reconfiguration mid-instance").
type Config struct {
	// T is the threshold: the minimum number of non-equivocating shares
	// required to combine an aggregated signature.
	T int `json:"t"`

	// N is the total number of witnesses in the set.
	N int `json:"n"`

	// TFallback is the duration a witness waits after sending its share or
	// state mismatch before entering the fallback gossip phase. The
	// initiator arms a timer of the same length but takes no action when
	// it fires.
	TFallback time.Duration `json:"t_fallback"`

	// GossipK is the peer-sample fanout per gossip tick while in
	// fallback. Default 3.
	GossipK int `json:"gossip_k"`

	// GossipPeriod is the interval between gossip ticks while undecided.
	GossipPeriod time.Duration `json:"gossip_period"`

	// GCRetention is how long a decided instance stays in the evidence
	// store before it becomes eligible for snapshotting/eviction.
	GCRetention time.Duration `json:"gc_retention"`
}

// Validate checks the invariants from spec §6.4: 0 < t <= n, t > f, and
// positive timers.
func (c Config) Validate() error {
	if c.N <= 0 {
		return ErrInvalidWitnessCount
	}
	if c.T <= 0 || c.T > c.N {
		return ErrInvalidThreshold
	}
	if !CanTolerateFailure(c.T, c.N) {
		return ErrThresholdBelowByzantineBound
	}
	if c.TFallback <= 0 {
		return ErrFallbackTimeoutTooLow
	}
	if c.GossipK <= 0 {
		return ErrInvalidGossipFanout
	}
	if c.GossipPeriod <= 0 {
		return ErrInvalidGossipPeriod
	}
	if c.GCRetention < 0 {
		return ErrInvalidGCRetention
	}
	return nil
}

// Default returns a Config for a witness set of size n using the minimal
// byzantine-tolerant threshold and the package's default timers.
func Default(n int) Config {
	return Config{
		T:            MinimalThreshold(n),
		N:            n,
		TFallback:    2 * time.Second,
		GossipK:      DefaultGossipFanout,
		GossipPeriod: 2 * time.Second / FallbackPeriodDivisor,
		GCRetention:  10 * time.Minute,
	}
}
