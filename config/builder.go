// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "time"

// Builder assembles a Config through a fluent chain, deferring validation
// to Build. Setters apply in call order: WithFallbackTimeout re-derives
// gossip_period, replacing any value set by an earlier WithGossipPeriod.
type Builder struct {
	cfg Config
	err error
}

// NewBuilder returns a Builder seeded with Default(n).
func NewBuilder(n int) *Builder {
	return &Builder{cfg: Default(n)}
}

// WithThreshold sets t.
func (b *Builder) WithThreshold(t int) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.T = t
	return b
}

// WithFallbackTimeout sets T_fallback and, unless overridden afterwards,
// derives gossip_period as T_fallback / FallbackPeriodDivisor.
func (b *Builder) WithFallbackTimeout(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.TFallback = d
	b.cfg.GossipPeriod = d / FallbackPeriodDivisor
	return b
}

// WithGossipFanout sets gossip_k.
func (b *Builder) WithGossipFanout(k int) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.GossipK = k
	return b
}

// WithGossipPeriod sets gossip_period explicitly, overriding any value
// derived by an earlier WithFallbackTimeout.
func (b *Builder) WithGossipPeriod(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.GossipPeriod = d
	return b
}

// WithGCRetention sets gc_retention.
func (b *Builder) WithGCRetention(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.GCRetention = d
	return b
}

// Build validates the accumulated Config and returns it.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}
